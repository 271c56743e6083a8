package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pshapiro/cubealarm/internal/gan"
)

var decodePlain bool

var decodeCmd = &cobra.Command{
	Use:   "decode <address> <hex-frame>",
	Short: "Decode a captured notification frame",
	Long: `Decrypt and decode a raw notification frame captured from a cube.

The address is the cube's hardware address (used to derive the session
keys); the frame is hex, with or without separators. Useful for inspecting
sniffer captures.`,
	Args: cobra.ExactArgs(2),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodePlain, "plain", false, "Frame is already decrypted")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(args[1])
	frame, err := hex.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("invalid hex frame: %w", err)
	}

	plain := frame
	if !decodePlain {
		keys, err := gan.DeriveKeys(args[0])
		if err != nil {
			return err
		}
		plain, err = gan.Decrypt(frame, keys)
		if err != nil {
			return err
		}
		fmt.Printf("Plaintext: % X\n", plain)
	}

	ev, err := gan.ParseFrame(plain)
	if err != nil {
		return err
	}

	fmt.Printf("Kind: %s\n", ev.Kind)
	switch ev.Kind {
	case gan.KindMove:
		fmt.Printf("Move: %s (serial %d)\n", ev.Move.Move, ev.Move.Serial)
	case gan.KindState:
		fmt.Printf("Facelets: %s\n", ev.State.Facelets())
		fmt.Printf("Solved: %v\n", ev.Solved)
	}
	return nil
}
