// issue-desk-token mints a bearer token for a circulation-desk client, signed with
// DESK_TOKEN_SECRET. The server accepts it on /transactions/add and /transactions/return/:id.
//
// Usage:
//   DESK_TOKEN_SECRET=... go run ./cmd/issue-desk-token -subject front-desk-1
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/utils"
)

func main() {
	subject := flag.String("subject", "", "Desk client name recorded in the token")
	flag.Parse()

	if strings.TrimSpace(*subject) == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(2)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading settings: %v\n", err)
		os.Exit(1)
	}
	if settings.DeskTokenSecret == "" {
		fmt.Fprintln(os.Stderr, "DESK_TOKEN_SECRET is not set")
		os.Exit(1)
	}

	token, err := utils.NewDeskTokens(settings.DeskTokenSecret, settings.DeskTokenLifespan).Generate(strings.TrimSpace(*subject))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
