package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jedib0t/go-pretty/text"
	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/services"
	"github.com/ornithemc/installer/util"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"
)

const keyringService = "ornithe-installer"
const oslURL = "https://modrinth.com/mod/osl"

func main() {
	app := &cli.App{
		Name:  "ornithe-installer",
		Usage: "Install Ornithe for the official launcher, a server, or MultiMC/Prism",
		Commands: []*cli.Command{
			{
				Name:  "client",
				Usage: "Client installation for the official launcher",
				Flags: append(selectorFlags(),
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Installation directory", Value: dotMinecraftDir()},
					&cli.BoolFlag{Name: "generate-profile", Aliases: []string{"p"}, Usage: "Whether to generate a launch profile", Value: true},
				),
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					target, err := resolveSelections(ctx, c, util.SideClient)
					if err != nil {
						return err
					}
					location := c.String("dir")
					err = withProgress(func(reporter services.ProgressReporter) error {
						return services.InstallClient(ctx, reporter, target.version, target.intermediary, target.loaderType, target.loaderVersion, c.Int("gen"), location, c.Bool("generate-profile"))
					})
					if err != nil {
						return err
					}
					keyring.Set(keyringService, "game_dir", location)
					printInstallHints()
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Server installation",
				Flags: append(selectorFlags(),
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Installation directory", Value: serverDir()},
					&cli.BoolFlag{Name: "download-minecraft", Usage: "Whether to download the minecraft server jar"},
				),
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					target, err := resolveSelections(ctx, c, util.SideServer)
					if err != nil {
						return err
					}
					err = withProgress(func(reporter services.ProgressReporter) error {
						return services.InstallServer(ctx, reporter, target.version, target.intermediary, target.loaderType, target.loaderVersion, c.Int("gen"), c.String("dir"), c.Bool("download-minecraft"))
					})
					if err != nil {
						return err
					}
					printInstallHints()
					return nil
				},
				Subcommands: []*cli.Command{
					{
						Name:  "run",
						Usage: "Install and run the server",
						Flags: append(selectorFlags(),
							&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Installation directory", Value: serverDir()},
							&cli.StringFlag{Name: "java", Usage: "The java binary to use to run the server"},
							&cli.StringFlag{Name: "args", Usage: "Java arguments to pass to the server (before the server jar)"},
						),
						Action: func(c *cli.Context) error {
							ctx := context.Background()
							target, err := resolveSelections(ctx, c, util.SideServer)
							if err != nil {
								return err
							}
							var extraArgs []string
							if args := c.String("args"); args != "" {
								extraArgs = strings.Split(args, " ")
							}
							installed := false
							err = withProgress(func(reporter services.ProgressReporter) error {
								var err error
								installed, err = services.InstallAndRunServer(ctx, reporter, target.version, target.intermediary, target.loaderType, target.loaderVersion, c.Int("gen"), c.String("dir"), c.String("java"), extraArgs)
								return err
							})
							if err != nil {
								return err
							}
							if installed {
								printInstallHints()
							}
							return nil
						},
					},
				},
			},
			{
				Name:    "mmc",
				Aliases: []string{"prism"},
				Usage:   "Generate an instance for MultiMC/PrismLauncher",
				Flags: append(selectorFlags(),
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Output directory", Value: currentDir()},
					&cli.BoolFlag{Name: "generate-zip", Aliases: []string{"z"}, Usage: "Whether to generate an instance zip instead of installing an instance into the directory", Value: true},
					&cli.BoolFlag{Name: "copy-profile-path", Aliases: []string{"c"}, Usage: "Whether to copy the path of the generated profile to the clipboard"},
				),
				Action: func(c *cli.Context) error {
					ctx := context.Background()
					target, err := resolveSelections(ctx, c, util.SideClient)
					if err != nil {
						return err
					}
					err = withProgress(func(reporter services.ProgressReporter) error {
						return services.InstallMMCPack(ctx, reporter, target.version, target.intermediary, target.loaderType, target.loaderVersion, c.String("dir"), c.Bool("copy-profile-path"), c.Bool("generate-zip"), c.Int("gen"))
					})
					if err != nil {
						return err
					}
					printInstallHints()
					return nil
				},
			},
			{
				Name:    "game-versions",
				Aliases: []string{"minecraft-versions"},
				Usage:   "List supported game versions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "show-snapshots", Aliases: []string{"s"}, Usage: "Include snapshot versions"},
					&cli.BoolFlag{Name: "show-historical", Usage: "Include historical versions"},
					genFlag(),
				},
				Action: func(c *cli.Context) error {
					info, err := services.GatherVersions(context.Background(), c.Int("gen"))
					if err != nil {
						return err
					}
					snapshots := c.Bool("show-snapshots")
					historical := c.Bool("show-historical")

					width := 0
					for _, version := range info.AvailableVersions {
						if len(version.ID) > width {
							width = len(version.ID)
						}
					}
					fmt.Println("Available Minecraft versions:")
					fmt.Println()
					for _, version := range info.AvailableVersions {
						displayed := version.IsRelease() ||
							(snapshots && version.IsSnapshot()) ||
							(historical && version.IsHistorical())
						if displayed {
							fmt.Println(text.AlignDefault.Apply(version.ID, width+2) + version.Type)
						}
					}
					return nil
				},
			},
			{
				Name:  "loader-versions",
				Usage: "List available loader versions",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "show-betas", Aliases: []string{"b"}, Usage: "Include beta versions"},
					loaderTypeFlag(),
					genFlag(),
				},
				Action: func(c *cli.Context) error {
					loaderType, err := loaderTypeFromString(c.String("loader-type"))
					if err != nil {
						return err
					}
					versions, err := api.FetchLoaderVersions(context.Background(), c.Int("gen"))
					if err != nil {
						return err
					}
					list := versions[loaderType]
					latest := "<not available>"
					if len(list) > 0 {
						latest = list[0].Version
					}
					fmt.Printf("Latest %s Loader version: %s\n", loaderType.LocalizedName(), latest)
					fmt.Printf("Available %s Loader versions:\n", loaderType.LocalizedName())
					var out []string
					for i := range list {
						if c.Bool("show-betas") || list[i].IsStable() {
							out = append(out, list[i].Version)
						}
					}
					fmt.Println(strings.Join(out, " "))
					return nil
				},
			},
			{
				Name:  "intermediary-generations",
				Usage: "List the latest & stable intermediary (Calamus) generations",
				Action: func(c *cli.Context) error {
					generations, err := api.FetchIntermediaryGenerations(context.Background())
					if err != nil {
						return err
					}
					fmt.Printf("Latest Generation: %d\n", generations.Latest)
					fmt.Printf("Stable Generation: %d\n", generations.Stable)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println("Error while running Ornithe Installer: " + err.Error())
		os.Exit(1)
	}
}

type targetSelection struct {
	version       *api.MinecraftVersion
	intermediary  *api.IntermediaryVersion
	loaderType    api.LoaderType
	loaderVersion *api.LoaderVersion
}

// resolveSelections turns the version/loader flags into concrete
// descriptors.
func resolveSelections(ctx context.Context, c *cli.Context, side util.GameSide) (*targetSelection, error) {
	versionArg := c.String("minecraft-version")
	if versionArg == "" {
		return nil, util.Errorf(util.ValidationError, "a minecraft version is required")
	}
	loaderType, err := loaderTypeFromString(c.String("loader-type"))
	if err != nil {
		return nil, err
	}

	info, err := services.GatherVersions(ctx, c.Int("gen"))
	if err != nil {
		return nil, err
	}
	version, intermediary, err := info.Resolve(versionArg, side)
	if err != nil {
		return nil, err
	}

	loaderVersions, err := api.FetchLoaderVersions(ctx, c.Int("gen"))
	if err != nil {
		return nil, err
	}
	loaderVersion, err := services.SelectLoaderVersion(loaderVersions[loaderType], c.String("loader-version"))
	if err != nil {
		return nil, err
	}
	return &targetSelection{version: version, intermediary: intermediary, loaderType: loaderType, loaderVersion: loaderVersion}, nil
}

// withProgress runs an orchestrator while rendering its progress events
// on a pterm progress bar.
func withProgress(run func(services.ProgressReporter) error) error {
	reporter := services.NewChannelReporter()
	done := make(chan error, 1)
	go func() {
		done <- run(reporter)
	}()

	bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithRemoveWhenDone(true).Start()
	for {
		select {
		case event := <-reporter.Events():
			if bar != nil {
				pterm.Info.Println(event.Message)
				if target := int(event.Fraction * 100); target > bar.Current {
					bar.Add(target - bar.Current)
				}
			}
		case err := <-done:
			for drained := false; !drained; {
				select {
				case event := <-reporter.Events():
					pterm.Info.Println(event.Message)
				default:
					drained = true
				}
			}
			if bar != nil {
				bar.Stop()
			}
			reporter.Close()
			return err
		}
	}
}

func printInstallHints() {
	pterm.Success.Println("Installation complete!")
	pterm.Info.Println("Most mods require that you also download the Ornithe Standard Libraries mod and place it in your mods folder.")
	pterm.Info.Println("You can find it at " + oslURL)
}

func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "minecraft-version", Aliases: []string{"m"}, Usage: "Minecraft version to use", Required: true},
		loaderTypeFlag(),
		&cli.StringFlag{Name: "loader-version", Usage: "Loader version to use", Value: "latest"},
		genFlag(),
	}
}

func loaderTypeFlag() cli.Flag {
	return &cli.StringFlag{Name: "loader-type", Usage: "Loader type to use (fabric, quilt)", Value: "fabric"}
}

func genFlag() cli.Flag {
	return &cli.IntFlag{Name: "gen", Aliases: []string{"generation"}, Usage: "The Intermediary Generation (Calamus)"}
}

func loaderTypeFromString(value string) (api.LoaderType, error) {
	switch strings.ToLower(value) {
	case "fabric":
		return api.LoaderFabric, nil
	case "quilt":
		return api.LoaderQuilt, nil
	}
	return "", util.Errorf(util.ValidationError, "unsupported loader type: %s", value)
}

// dotMinecraftDir picks the default game directory, favoring the last
// directory a client install targeted.
func dotMinecraftDir() string {
	if dir, err := keyring.Get(keyringService, "game_dir"); err == nil && dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, ".minecraft")
		}
		return filepath.Join(home, ".minecraft")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "minecraft")
	default:
		dotMinecraft := filepath.Join(home, ".minecraft")
		flatpak := filepath.Join(home, ".var", "app", "com.mojang.Minecraft", ".minecraft")
		if _, err := os.Stat(flatpak); err == nil {
			if _, err := os.Stat(dotMinecraft); err != nil {
				return flatpak
			}
		}
		return dotMinecraft
	}
}

func currentDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

func serverDir() string {
	return filepath.Join(currentDir(), "server")
}
