package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/host"
	"github.com/robmorgan/orbit/logger"
	"github.com/robmorgan/orbit/pacemaker"
	"github.com/robmorgan/orbit/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"k8s.io/utils/clock"
)

var (
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Width(12)
	frameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Width(12).Align(lipgloss.Right)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

var (
	runDuration time.Duration
	runBPM      int
	runRealtime bool
	runStateDir string
	runSets     []string
)

func init() {
	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 4*time.Second, "how much audio time to render")
	runCmd.Flags().IntVar(&runBPM, "bpm", 120, "tempo of the built-in transport")
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "pace blocks with the wall clock and run workers in the background")
	runCmd.Flags().StringVar(&runStateDir, "state", "", "directory to restore module state from and save it to")
	runCmd.Flags().StringArrayVar(&runSets, "set", nil, "set a parameter, e.g. --set loop.width=2")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [name=]module...",
	Short: "Runs a patch behind the built-in transport",
	Long: `Runs the modules named on the command line, the patch of the config file or
the default patch, in series behind a rolling transport. MIDI output of every
module is printed as it is produced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromArgs(args)
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			patch = orbitConfig.Patch
		}
		if len(patch) == 0 {
			patch = config.DefaultPatch()
		}
		if err := applySets(patch, runSets); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		return run(ctx, cmd.OutOrStdout(), orbitConfig, patch)
	},
}

// patchFromArgs turns "module" and "name=module" arguments into patch entries.
func patchFromArgs(args []string) ([]config.PatchedModule, error) {
	var patch []config.PatchedModule
	for _, arg := range args {
		name, module := arg, arg
		if i := strings.IndexByte(arg, '='); i >= 0 {
			name, module = arg[:i], arg[i+1:]
		}
		if name == "" || module == "" {
			return nil, fmt.Errorf("invalid module argument %q", arg)
		}
		patch = append(patch, config.PatchedModule{Name: name, Module: module})
	}
	return patch, nil
}

// applySets parses name.param=value assignments into the patch.
func applySets(patch []config.PatchedModule, sets []string) error {
	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid parameter assignment %q", set)
		}
		name, param, ok := strings.Cut(key, ".")
		if !ok || param == "" {
			return fmt.Errorf("parameter %q is not of the form name.param", key)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return goerrors.WithStackTraceAndPrefix(err, "parameter %s", key)
		}

		i := slices.IndexFunc(patch, func(p config.PatchedModule) bool { return instanceName(p) == name })
		if i < 0 {
			return fmt.Errorf("the patch does not contain a module named %s", name)
		}
		if patch[i].Params == nil {
			patch[i].Params = make(map[string]float64)
		}
		patch[i].Params[param] = value
	}
	return nil
}

func instanceName(p config.PatchedModule) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Module
}

// session is one instantiated patch.
type session struct {
	cfg       config.OrbitConfig
	urids     *host.URIDMap
	midi      atom.URID
	transport *pacemaker.Pacemaker
	chain     *host.Chain
	log       *logrus.Entry
}

func newSession(cfg config.OrbitConfig, patch []config.PatchedModule, sched host.Scheduler) (*session, error) {
	registry, err := newRegistry()
	if err != nil {
		return nil, err
	}

	log := logger.GetProjectLogger()
	urids := host.NewURIDMap()
	f := host.Features{
		Map:      urids,
		Unmap:    urids,
		Schedule: sched,
		Log:      log,
	}

	transport, err := pacemaker.New(cfg, f)
	if err != nil {
		return nil, err
	}
	transport.Controls.BeatsPerMinute = runBPM
	transport.Controls.Rolling = true

	s := &session{
		cfg:       cfg,
		urids:     urids,
		midi:      urids.Map(atom.URIMidiEvent),
		transport: transport,
		chain:     host.NewChain(transport, cfg.OutputCapacity),
		log:       log,
	}

	seen := make(map[string]bool)
	for _, p := range patch {
		name := instanceName(p)
		if seen[name] {
			s.chain.Close()
			return nil, fmt.Errorf("the patch contains more than one module named %s", name)
		}
		seen[name] = true

		f.MakePath = host.DirPathMaker{Dir: filepath.Join(cfg.ArchiveDir, name)}
		m, err := registry.Instantiate(p.Module, cfg, f)
		if err != nil {
			s.chain.Close()
			return nil, err
		}
		s.chain.Add(name, m)

		if err := setParams(m, p.Params); err != nil {
			s.chain.Close()
			return nil, goerrors.WithStackTraceAndPrefix(err, "module %s", name)
		}
	}
	return s, nil
}

func setParams(m host.Module, params map[string]float64) error {
	if len(params) == 0 {
		return nil
	}
	pm, ok := m.(host.Parameterized)
	if !ok {
		return fmt.Errorf("module has no parameters")
	}
	names := maps.Keys(params)
	slices.Sort(names)
	for _, name := range names {
		if err := pm.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func statePath(dir, name string) string {
	return filepath.Join(dir, name+".state")
}

// restore loads saved state into every stateful stage that has some.
func (s *session) restore(dir string) error {
	for _, stage := range s.chain.Stages() {
		st, ok := stage.Module.(host.Stateful)
		if !ok {
			continue
		}
		blob, err := os.ReadFile(statePath(dir, stage.Name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return goerrors.WithStackTrace(err)
		}
		if err := st.Restore(blob); err != nil {
			return goerrors.WithStackTraceAndPrefix(err, "restoring %s", stage.Name)
		}
		s.log.WithField("module", stage.Name).Info("Restored state")
	}
	return nil
}

func (s *session) save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return goerrors.WithStackTrace(err)
	}
	for _, stage := range s.chain.Stages() {
		st, ok := stage.Module.(host.Stateful)
		if !ok {
			continue
		}
		blob, err := st.Save()
		if err != nil {
			return goerrors.WithStackTraceAndPrefix(err, "saving %s", stage.Name)
		}
		if err := os.WriteFile(statePath(dir, stage.Name), blob, 0o644); err != nil {
			return goerrors.WithStackTrace(err)
		}
		s.log.WithField("module", stage.Name).Info("Saved state")
	}
	return nil
}

// block runs one block and prints the MIDI output of every stage.
func (s *session) block(w io.Writer, at, nsamples int64) {
	if !s.chain.Run(nsamples) {
		s.log.WithField("frame", at).Warn("Merged input overflowed")
	}

	for _, stage := range s.chain.Stages() {
		out := stage.Out
		for c := out.Begin(); !out.IsEnd(c); c = out.Next(c) {
			ev := out.Event(c)
			if ev.Atom.Type != s.midi {
				continue
			}
			fmt.Fprintf(w, "%s %s %s\n",
				frameStyle.Render(strconv.FormatInt(at+ev.Frames, 10)),
				stageStyle.Render(stage.Name),
				midi.Message(ev.Atom.Body).String())
		}
	}
}

func (s *session) report(w io.Writer) {
	for _, stage := range s.chain.Stages() {
		r, ok := stage.Module.(host.Reporter)
		if !ok {
			continue
		}
		fmt.Fprintln(w, headerStyle.Render(stage.Name))
		status := r.Status()
		keys := maps.Keys(status)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-18s %g\n", k, status[k])
		}
	}
}

func run(ctx context.Context, w io.Writer, cfg config.OrbitConfig, patch []config.PatchedModule) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var (
		sched  host.Scheduler
		manual *host.ManualScheduler
		pool   *host.WorkerPool
	)
	workers, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if runRealtime {
		pool = host.NewWorkerPool(workers)
		sched = pool
	} else {
		manual = &host.ManualScheduler{}
		sched = manual
	}

	s, err := newSession(cfg, patch, sched)
	if err != nil {
		return err
	}
	if runStateDir != "" {
		if err := s.restore(runStateDir); err != nil {
			s.chain.Close()
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"modules":  len(patch),
		"bpm":      runBPM,
		"duration": runDuration,
		"realtime": runRealtime,
	}).Info("Running patch")

	total := int64(runDuration.Seconds() * cfg.SampleRate)
	period := time.Duration(float64(cfg.BlockSize) / cfg.SampleRate * float64(time.Second))
	clk := clock.RealClock{}
	timer := clk.NewTimer(period)
	defer timer.Stop()

	s.chain.Activate()
	var at int64
loop:
	for at < total {
		n := utils.Min(cfg.BlockSize, total-at)
		s.block(w, at, n)
		at += n

		if manual != nil {
			manual.WorkAll()
			select {
			case <-ctx.Done():
				break loop
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			break loop
		case <-timer.C():
			timer.Reset(period)
		}
	}
	s.chain.Deactivate()

	stopWorkers()
	if pool != nil {
		pool.Wait()
		pool.Flush()
	} else {
		manual.WorkAll()
	}
	s.report(w)

	if runStateDir != "" {
		if err := s.save(runStateDir); err != nil {
			s.chain.Close()
			return err
		}
	}

	err = s.chain.Close()
	s.log.WithField("frames", at).Info("Patch finished")
	return err
}
