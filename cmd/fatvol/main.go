package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aligator/blockfat"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// config holds the defaults taken from the environment, e.g. FATVOL_DISK=disk.img.
type config struct {
	Disk  string `envconfig:"DISK"`
	Debug bool   `envconfig:"DEBUG"`
}

// main is a small tool to create and inspect volumes.
func main() {
	var conf config
	if err := envconfig.Process("fatvol", &conf); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := newApp(afero.NewOsFs(), conf, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(afs afero.Fs, conf config, out io.Writer) *cli.App {
	diskFlag := &cli.StringFlag{
		Name:    "disk",
		Aliases: []string{"d"},
		Usage:   "path of the volume image",
		Value:   conf.Disk,
	}

	return &cli.App{
		Name:   "fatvol",
		Usage:  "create and inspect FAT volumes",
		Writer: out,
		Flags: []cli.Flag{
			diskFlag,
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log what the filesystem does",
				Value: conf.Debug,
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogger(c.Bool("debug"))
		},
		After: func(c *cli.Context) error {
			// Errors from syncing stderr are not interesting.
			_ = blockfat.Logger().Sync()
			return nil
		},
		Commands: []*cli.Command{{
			Name:      "mkfs",
			Usage:     "create and format a new image",
			ArgsUsage: " ",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "blocks",
					Usage: "number of blocks of the image",
					Value: 8192,
				},
			},
			Action: func(c *cli.Context) error {
				disk, err := requireDisk(c)
				if err != nil {
					return err
				}
				return blockfat.CreateImage(afs, disk, c.Int("blocks"))
			},
		}, {
			Name:  "info",
			Usage: "print the geometry and usage of the volume",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				info, err := fs.Info()
				if err != nil {
					return err
				}

				fmt.Fprintf(c.App.Writer, "FS Info:\n")
				fmt.Fprintf(c.App.Writer, "total_blk_count=%d\n", info.TotalBlocks)
				fmt.Fprintf(c.App.Writer, "fat_blk_count=%d\n", info.FATBlocks)
				fmt.Fprintf(c.App.Writer, "rdir_blk=%d\n", info.RootBlock)
				fmt.Fprintf(c.App.Writer, "data_blk=%d\n", info.FirstDataBlock)
				fmt.Fprintf(c.App.Writer, "data_blk_count=%d\n", info.DataBlocks)
				fmt.Fprintf(c.App.Writer, "fat_free_ratio=%d/%d\n", info.FreeDataBlocks, info.DataBlocks-1)
				fmt.Fprintf(c.App.Writer, "rdir_free_ratio=%d/%d\n", info.FreeFiles, blockfat.MaxFiles)
				return nil
			}),
		}, {
			Name:  "ls",
			Usage: "list the files of the volume",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				fmt.Fprintln(c.App.Writer, "FS Ls:")
				for entry := range fs.List() {
					fmt.Fprintf(c.App.Writer, "file: %s, size: %d, data_blk: %d\n", entry.Name, entry.Size, entry.FirstBlock)
				}
				return nil
			}),
		}, {
			Name:      "add",
			Usage:     "copy a host file onto the volume",
			ArgsUsage: "<host file>",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				source := c.Args().First()
				if source == "" {
					return cli.Exit("missing host file", 1)
				}

				data, err := afero.ReadFile(afs, source)
				if err != nil {
					return err
				}

				name := baseName(source)
				file, err := blockfat.NewAferoFs(fs).OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
				if err != nil {
					return err
				}

				n, err := file.Write(data)
				closeErr := file.Close()
				fmt.Fprintf(c.App.Writer, "Wrote file '%s' (%d/%d bytes)\n", name, n, len(data))
				if err != nil {
					return err
				}
				return closeErr
			}),
		}, {
			Name:      "cat",
			Usage:     "print a file of the volume",
			ArgsUsage: "<file>",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				data, err := afero.ReadFile(blockfat.NewAferoFs(fs), c.Args().First())
				if err != nil {
					return err
				}
				_, err = c.App.Writer.Write(data)
				return err
			}),
		}, {
			Name:      "stat",
			Usage:     "print the size of a file of the volume",
			ArgsUsage: "<file>",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				fd, err := fs.Open(c.Args().First())
				if err != nil {
					return err
				}
				defer fs.Close(fd)

				size, err := fs.Stat(fd)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Size of file '%s' is %d bytes\n", c.Args().First(), size)
				return nil
			}),
		}, {
			Name:      "rm",
			Usage:     "delete a file of the volume",
			ArgsUsage: "<file>",
			Action: withVolume(afs, func(c *cli.Context, fs *blockfat.Fs) error {
				if err := fs.Delete(c.Args().First()); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Removed file '%s'\n", c.Args().First())
				return nil
			}),
		}},
	}
}

func setupLogger(debug bool) error {
	if !debug {
		return nil
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	blockfat.SetLogger(logger)
	return nil
}

func requireDisk(c *cli.Context) (string, error) {
	disk := c.String("disk")
	if disk == "" {
		return "", cli.Exit("no volume given, use --disk or FATVOL_DISK", 1)
	}
	return disk, nil
}

// withVolume mounts the volume for the duration of action.
func withVolume(afs afero.Fs, action func(*cli.Context, *blockfat.Fs) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		disk, err := requireDisk(c)
		if err != nil {
			return err
		}

		fs, err := blockfat.MountFile(afs, disk)
		if err != nil {
			return err
		}

		actionErr := action(c, fs)
		if err := fs.Unmount(); err != nil && actionErr == nil {
			return err
		}
		return actionErr
	}
}

func baseName(p string) string {
	return filepath.Base(p)
}
