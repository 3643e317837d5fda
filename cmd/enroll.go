package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a user from a photo file",
	Long: `Upload a photo to the blob store, record the identity in the ledger and
cache the photo locally. A running server picks the user up on its next
hydration; use the kiosk registration page to enroll into a live server.

Examples:
  attendance-kiosk enroll --name "Jiri Novak" --id 12 --image jiri.jpg`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Display name")
	enrollCmd.Flags().Int64("id", 0, "Numeric user id")
	enrollCmd.Flags().String("image", "", "Path to the enrollment photo")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("id")
	enrollCmd.MarkFlagRequired("image")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	uid := mustGetInt64(cmd, "id")
	path := mustGetString(cmd, "image")

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > constants.MaxImageSize {
		return errors.New("image is too large")
	}
	img, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	e, err := openEnrollment(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.cache.Enroll(ctx, name, uid, img)
	if err != nil {
		return err
	}

	fmt.Printf("Enrolled %s (id %d)\n", res.Identity.Name, res.Identity.UID)
	fmt.Printf("  Handle:  %s\n", res.Identity.RemoteHandle)
	if res.Path != "" {
		fmt.Printf("  Cached:  %s\n", res.Path)
	}
	if res.Samples == 0 {
		fmt.Println("  Warning: no face found in the photo, the user cannot be recognized")
	} else {
		fmt.Printf("  Samples: %d\n", res.Samples)
	}
	return nil
}
