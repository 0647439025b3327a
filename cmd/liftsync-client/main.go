package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/claude/liftsync/internal/config"
	"github.com/claude/liftsync/internal/kv"
	"github.com/claude/liftsync/internal/models"
	"github.com/claude/liftsync/internal/netstatus"
	"github.com/claude/liftsync/internal/outbox"
	"github.com/claude/liftsync/internal/session"
	"github.com/claude/liftsync/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `Usage: liftsync-client [-config FILE] [-v] <command> [args]

Commands:
  start <name>                  begin a new workout draft
  add <exercise_id> <name>      add an exercise to the draft
  set <block> <weight_kg> <reps> log a completed set (blocks count from 1)
  notes <text>                  set the workout notes
  show                          print the draft and its summary
  submit                        save the draft (queued if offline)
  discard                       throw the draft away
  log <file.json>               save a finished workout from a JSON draft file
  pending                       list workouts waiting to sync
  flush                         try to sync pending workouts once
  sync                          keep syncing until interrupted
  history [days]                list saved workouts (default 30 days)
`

func main() {
	configPath := flag.String("config", "liftsync-client.yaml", "path to client config file")
	verbose := flag.Bool("v", false, "debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if *version {
		fmt.Println("liftsync-client", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open client state", "error", err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app wires the offline-first core against durable SQLite state.
type app struct {
	cfg     *config.ClientConfig
	log     *slog.Logger
	state   *kv.SQLite
	client  *upload.Client
	monitor *netstatus.Monitor
	prober  *netstatus.Prober
	outbox  *outbox.Outbox
	session *session.Session
}

func newApp(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger) (*app, error) {
	state, err := kv.OpenSQLite(cfg.StateDir, cfg.QuotaBytes)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		state:   state,
		client:  upload.NewClient(cfg.ServerURL, cfg.APIKey),
		monitor: netstatus.NewMonitor(false, log),
	}
	a.prober = netstatus.NewProber(a.client, a.monitor, cfg.ProbeInterval, log)
	a.outbox = outbox.New(state, log)

	// One probe up front so submit knows whether to queue.
	a.prober.Probe(ctx)

	a.session = session.New(session.Deps{
		Store:       state,
		Outbox:      a.outbox,
		Saver:       a.client,
		Monitor:     a.monitor,
		Notifier:    upload.NotifierFunc(printNotice),
		DefaultRest: cfg.DefaultRest(),
		Log:         log,
	})
	return a, nil
}

func (a *app) close() {
	a.session.Close()
	if err := a.state.Close(); err != nil {
		a.log.Warn("closing state db", "error", err)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "start":
		if len(args) != 1 {
			return errors.New("usage: start <name>")
		}
		d, err := a.session.Start(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Started %q (%s)\n", d.Name, d.ID)
		return nil

	case "add":
		if len(args) != 2 {
			return errors.New("usage: add <exercise_id> <name>")
		}
		block, err := a.session.AddExercise(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added %s as block %d\n", args[1], block+1)
		return nil

	case "set":
		return a.logSet(args)

	case "notes":
		if len(args) != 1 {
			return errors.New("usage: notes <text>")
		}
		return a.session.SetNotes(args[0])

	case "show":
		return a.show()

	case "submit":
		return a.submit(ctx)

	case "discard":
		if err := a.session.Discard(); err != nil {
			return err
		}
		fmt.Println("Draft discarded")
		return nil

	case "log":
		if len(args) != 1 {
			return errors.New("usage: log <file.json>")
		}
		return a.logFile(ctx, args[0])

	case "pending":
		a.printPending()
		return nil

	case "flush":
		return a.flushOnce(ctx)

	case "sync":
		return a.sync(ctx)

	case "history":
		days := 30
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid day count %q", args[0])
			}
			days = n
		}
		return a.history(ctx, days)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) logSet(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: set <block> <weight_kg> <reps>")
	}
	block, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid block %q", args[0])
	}
	weight, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid weight %q", args[1])
	}
	reps, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid reps %q", args[2])
	}

	idx, err := a.session.AddSet(block-1, models.Set{WeightKg: &weight, Reps: &reps})
	if err != nil {
		return err
	}
	if err := a.session.CompleteSet(block-1, idx); err != nil {
		return err
	}
	fmt.Printf("Set %d: %g kg x %d\n", idx+1, weight, reps)
	if rest := a.cfg.DefaultRest(); rest > 0 {
		fmt.Printf("Rest %s\n", rest)
	}
	return nil
}

func (a *app) show() error {
	d := a.session.Draft()
	if d == nil {
		return session.ErrNoDraft
	}
	sum, err := a.session.Summary()
	if err != nil {
		return err
	}

	fmt.Printf("%s (started %s)\n", d.Name, d.CreatedAt.Local().Format("2006-01-02 15:04"))
	for i, b := range d.Exercises {
		fmt.Printf("  %d. %s\n", i+1, b.ExerciseName)
		for j, s := range b.Sets {
			mark := " "
			if s.Completed {
				mark = "x"
			}
			fmt.Printf("     [%s] set %d: %s\n", mark, j+1, formatSet(s))
		}
	}
	if d.Notes != "" {
		fmt.Printf("  Notes: %s\n", d.Notes)
	}
	fmt.Printf("  %d/%d sets counted, %d reps, %.1f kg volume\n",
		sum.CountedSets, sum.TotalSets, sum.TotalReps, sum.VolumeKg)
	return nil
}

func formatSet(s models.Set) string {
	w, r := "-", "-"
	if s.WeightKg != nil {
		w = strconv.FormatFloat(*s.WeightKg, 'f', -1, 64) + " kg"
	}
	if s.Reps != nil {
		r = strconv.Itoa(*s.Reps)
	}
	return w + " x " + r
}

func (a *app) submit(ctx context.Context) error {
	res, err := a.session.Submit(ctx)
	if err != nil {
		return err
	}
	if res.Queued {
		fmt.Printf("Pending workouts: %d\n", a.outbox.Len())
	}
	return nil
}

// logFile loads a draft from JSON into the session and submits it.
func (a *app) logFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var d models.WorkoutDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if _, err := a.session.Start(d.Name); err != nil {
		return err
	}
	for _, b := range d.Exercises {
		block, err := a.session.AddExercise(b.ExerciseID, b.ExerciseName)
		if err != nil {
			return err
		}
		for _, s := range b.Sets {
			if _, err := a.session.AddSet(block, s); err != nil {
				return err
			}
		}
	}
	if err := a.session.SetNotes(d.Notes); err != nil {
		return err
	}
	return a.submit(ctx)
}

func (a *app) printPending() {
	pending := a.outbox.ListPending()
	if len(pending) == 0 {
		fmt.Println("Nothing pending")
		return
	}
	for _, e := range pending {
		fmt.Println(pendingLine(e))
	}
}

// pendingLine renders one queued workout for the pending listing.
func pendingLine(e models.OutboxEntry) string {
	line := fmt.Sprintf("%s  %-24s queued %s", shortID(e.ID), e.Payload.Name, e.EnqueuedAt.Local().Format("2006-01-02 15:04"))
	if e.RetryCount > 0 {
		line += fmt.Sprintf("  retries=%d last_error=%q", e.RetryCount, e.LastError)
		if !e.NextAttempt.IsZero() {
			line += " next " + e.NextAttempt.Local().Format("15:04:05")
		}
	}
	return line
}

// shortID trims a UUID to its first group. The queue is user-editable JSON,
// so shorter IDs are printed whole.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func (a *app) newFlusher() *upload.Flusher {
	return upload.NewFlusher(a.outbox, a.client, a.monitor, upload.NotifierFunc(printNotice), upload.DefaultConfig(), a.log)
}

func (a *app) flushOnce(ctx context.Context) error {
	if !a.monitor.Online() {
		return fmt.Errorf("%s is not reachable, %d workout(s) still pending", a.cfg.ServerURL, a.outbox.Len())
	}
	res, _ := a.newFlusher().Flush(ctx)
	fmt.Printf("Synced %d, failed %d, pending %d\n", res.Delivered, res.Failed, res.Remaining)
	return nil
}

// sync runs the prober and flusher until interrupted.
func (a *app) sync(ctx context.Context) error {
	f := a.newFlusher()
	fmt.Printf("Syncing to %s (%d pending), Ctrl-C to stop\n", a.cfg.ServerURL, a.outbox.Len())

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.prober.Run(ctx)
	}()
	f.Run(ctx)
	<-done

	st := f.Stats()
	fmt.Printf("Stopped: %d passes, %d synced, %d failed attempts, %d pending\n",
		st.Passes, st.Delivered, st.Failed, a.outbox.Len())
	return nil
}

func (a *app) history(ctx context.Context, days int) error {
	end := time.Now()
	rows, err := a.client.ListWorkouts(ctx, end.AddDate(0, 0, -days), end)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No workouts in the last %d days\n", days)
		return nil
	}
	for _, w := range rows {
		fmt.Printf("%s  %-24s %3.0f min  %s\n",
			w.StartedAt.Local().Format("2006-01-02 15:04"), w.Name, w.DurationSec/60, w.ID)
	}
	return nil
}

func printNotice(n models.Notice) {
	switch n.Kind {
	case models.NoticeSaved:
		fmt.Printf("Workout saved (%s)\n", n.WorkoutID)
	case models.NoticeSavedOffline:
		fmt.Println("Saved offline. It will sync when the server is reachable.")
	case models.NoticeSynced:
		fmt.Printf("Synced offline workout %s (%s)\n", n.DraftID, n.WorkoutID)
	}
}
