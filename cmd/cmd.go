// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/stemx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func trackFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"s"},
			Usage:   "Session ID from history",
		},
		&cli.StringSliceFlag{
			Name:    "track",
			Aliases: []string{"t"},
			Usage:   "Stem as kind=url (repeatable; kinds: vocals, drums, bass, other)",
		},
	}
}

// setupCommand handles setup of configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write config.toml and initialize the history database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// tuiCommand returns the top-level TUI command for interactive separation and playback.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ui",
		Aliases: []string{"tui", "interactive"},
		Usage:   "Launch the interactive upload form and stem player",
		Action:  r.TUI,
	}
}

// processCommand submits a file or URL for separation.
func processCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Separate a local file or remote URL into stems",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Local audio file to upload",
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "Remote page or media URL",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "play",
				Usage: "Open the player once the stems are ready",
			},
		},
		Action: r.Process,
	}
}

// playCommand opens the player for existing stems.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play the stems of a session together",
		Flags: append(trackFlags(),
			&cli.StringFlag{
				Name:  "stop-mode",
				Usage: "What stop does to the playhead: reset or hold",
			},
		),
		Action: r.Play,
	}
}

// downloadCommand fetches the ZIP archive of a session's stems.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download the stems of a session as a ZIP archive",
		Flags: append(trackFlags(),
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the download URL in the system browser",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
				Value:   "stems.zip",
			},
		),
		Action: r.Download,
	}
}

// deleteCommand removes a session's files from the backend.
func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete a session's files on the backend",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "session-id",
			},
		},
		Action: r.Delete,
	}
}

// cleanupCommand re-issues deletions for sessions whose files may still exist.
func cleanupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete backend files of every session not yet cleaned up",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "Also prune the local stem cache",
				Value: true,
			},
		},
		Action: r.Cleanup,
	}
}

// historyCommand lists past separations.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past separations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (" + strings.Join(formatter.Formats, ", ") + ")",
				Value: "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show only the most recent sessions",
			},
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "Show only sessions whose files were not deleted",
			},
		},
		Action: r.History,
	}
}
