package cli

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm"
)

var alarmNow bool

var alarmCmd = &cobra.Command{
	Use:   "alarm",
	Short: "Run the wake-up alarm",
	Long: `Wait until the configured alarm time, sound the alarm, and keep it
sounding until the cube reports a solved state.

The alarm sound is the configured shell command, run in a loop until the
cube is solved. The cube connection is established ahead of the alarm time
so the solve registers immediately.`,
	RunE: runAlarm,
}

func init() {
	alarmCmd.Flags().BoolVar(&alarmNow, "now", false, "Sound the alarm immediately instead of waiting")
	rootCmd.AddCommand(alarmCmd)
}

// execSounder loops a shell command until stopped.
type execSounder struct {
	command string

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	proc    *exec.Cmd
}

func (s *execSounder) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}

			cmd := exec.Command("sh", "-c", s.command)
			s.mu.Lock()
			s.proc = cmd
			s.mu.Unlock()
			_ = cmd.Run()
		}
	}()
}

func (s *execSounder) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	if s.proc != nil && s.proc.Process != nil {
		_ = s.proc.Process.Kill()
	}
}

// nextAlarm returns the next occurrence of the HH:MM wall-clock time.
func nextAlarm(hhmm string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}

func runAlarm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Alarm.Command == "" {
		return fmt.Errorf("alarm.command is not configured")
	}
	if cfg.Alarm.Time == "" && !alarmNow {
		return fmt.Errorf("alarm.time is not configured (or use --now)")
	}

	sounder := &execSounder{command: cfg.Alarm.Command}
	defer sounder.Stop()

	mon, err := newMonitor(cfg, cubealarm.WithSounder(sounder))
	if err != nil {
		return err
	}
	defer mon.Close()

	solved := make(chan struct{})
	mon.OnSolved(func() { close(solved) })

	// Connect ahead of time so the first move registers instantly.
	if err := mon.Start(); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	if !alarmNow {
		at, err := nextAlarm(cfg.Alarm.Time, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Alarm set for %s\n", at.Format("Mon 15:04"))
		timer := time.NewTimer(time.Until(at))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-interrupt:
			fmt.Println("Cancelled.")
			return nil
		}
	}

	fmt.Println("WAKE UP! Solve the cube to silence the alarm.")
	if err := mon.TriggerAlarm(); err != nil {
		return err
	}

	select {
	case <-solved:
		fmt.Println("Solved. Good morning.")
	case <-interrupt:
		fmt.Println("Interrupted.")
	}
	return nil
}
