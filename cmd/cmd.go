// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const version = "0.1.0"

// app builds the root command. Global flags are applied in [Runner.configure] before any action runs.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "snapsong",
		Usage:   "Turn song screenshots into Spotify playlist entries",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SNAPSONG_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write logs to this file, rotated by size",
			},
		},
		Before:   r.configure,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, watchCommand, authCommand, setupCommand, playlistCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// pipelineFlags are shared by run and watch.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "inbox",
			Aliases: []string{"i"},
			Usage:   "Directory of screenshots (overrides pipeline.inbox)",
		},
		&cli.StringFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Target playlist name (overrides pipeline.playlist)",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Images processed concurrently (overrides pipeline.workers)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Extract, search and decide without adding tracks or moving files",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"r"},
			Usage:   "Write a run report to this path (.csv, .md or .json)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Report format (csv, markdown, json); inferred from --report when empty",
		},
	}
}

func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Process every screenshot in the inbox once",
		Flags:  pipelineFlags(),
		Action: r.Run,
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Process the inbox, then keep processing screenshots as they arrive",
		Flags: append(pipelineFlags(), &cli.DurationFlag{
			Name:  "debounce",
			Usage: "Quiet period after the last file event before a pass (overrides pipeline.watch_debounce)",
		}),
		Action: r.Watch,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize snapsong with Spotify and store the tokens in the config file",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: defaultAuthTimeout,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write a config file from the template and create the output directories",
		Action: r.Setup,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Target playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "ensure",
				Usage: "Find the target playlist by name, creating it when missing, and print its ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist name (overrides pipeline.playlist)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistEnsure,
			},
		},
	}
}
