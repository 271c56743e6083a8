package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm/internal/storage"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List recorded sessions",
	Long: `List sessions recorded with 'cubealarm watch --record'.

With a session ID, print that session's event log instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum sessions to list")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return showSession(db, args[0])
	}

	sessions, err := storage.NewSessionRepository(db).List(sessionsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return nil
	}

	events := storage.NewEventRepository(db)
	fmt.Printf("%-36s  %-18s  %-9s  %s\n", "SESSION", "DEVICE", "DURATION", "EVENTS")
	for _, s := range sessions {
		duration := "open"
		if s.EndedAtMs != nil {
			duration = (time.Duration(*s.EndedAtMs-s.StartedAtMs) * time.Millisecond).Round(time.Second).String()
		}
		n, err := events.Count(s.SessionID)
		if err != nil {
			return err
		}
		fmt.Printf("%-36s  %-18s  %-9s  %d\n", s.SessionID, s.DeviceAddr, duration, n)
	}
	return nil
}

func showSession(db *storage.DB, sessionID string) error {
	s, err := storage.NewSessionRepository(db).Get(sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}

	events, err := storage.NewEventRepository(db).GetBySession(sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s (%s)\n", s.SessionID, s.DeviceAddr)
	for _, e := range events {
		ts := (time.Duration(e.TsMs) * time.Millisecond).Round(time.Millisecond)
		switch e.EventType {
		case storage.EventTypeMove:
			fmt.Printf("%10s  move   %s\n", ts, *e.Move)
		case storage.EventTypeState:
			solved := ""
			if e.Solved != nil && *e.Solved {
				solved = "  solved"
			}
			fmt.Printf("%10s  state  %s%s\n", ts, *e.Facelets, solved)
		default:
			fmt.Printf("%10s  %s\n", ts, e.EventType)
		}
	}
	return nil
}
