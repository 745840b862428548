package command

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/trainmesh-go/internal/cli/output"
	"github.com/yndnr/trainmesh-go/internal/config"
	"github.com/yndnr/trainmesh-go/internal/core/domain"
	"github.com/yndnr/trainmesh-go/internal/storage"
	"github.com/yndnr/trainmesh-go/internal/telemetry/logger"
)

// ManifestCommand returns the manifest subcommand group.
func ManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Manage datasets in the manifest store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Manifest store directory",
				EnvVars: []string{"TRAINMESH_MANIFEST_DIR"},
				Value:   config.DefaultManifestDir,
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import a dataset from file lists and a raw mean image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Dataset name", Required: true},
					&cli.StringFlag{Name: "train-list", Usage: "Train list, one \"<file> <label>\" per line", Required: true},
					&cli.StringFlag{Name: "val-list", Usage: "Validation list"},
					&cli.StringFlag{Name: "mean", Usage: "Raw little-endian float32 mean image"},
					&cli.StringFlag{Name: "mean-shape", Usage: "Mean image shape, e.g. 3,256,256"},
				},
				Action: manifestImport,
			},
			{
				Name:      "show",
				Usage:     "Show a dataset summary",
				ArgsUsage: "<name>",
				Action:    manifestShow,
			},
			{
				Name:   "list",
				Usage:  "List dataset names",
				Action: manifestList,
			},
		},
	}
}

func openManifest(c *cli.Context) (*storage.BadgerManifest, func(), error) {
	cfg := storage.DefaultBadgerConfig(c.String("dir"))
	cfg.GCInterval = 0
	store, err := storage.OpenBadger(cfg, logger.Nop().Slog())
	if err != nil {
		return nil, nil, fmt.Errorf("open manifest store: %w", err)
	}
	return storage.NewBadgerManifest(store), func() { store.Close() }, nil
}

func readList(path string) ([]string, []int32, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	files, labels, err := storage.ParseList(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return files, labels, nil
}

func parseShape(s string) ([]int, error) {
	var shape []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid shape %q", s)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

func manifestImport(c *cli.Context) error {
	ds := &storage.Dataset{Name: c.String("name")}

	var err error
	if ds.TrainFiles, ds.TrainLabels, err = readList(c.String("train-list")); err != nil {
		return err
	}
	if ds.ValFiles, ds.ValLabels, err = readList(c.String("val-list")); err != nil {
		return err
	}

	if path := c.String("mean"); path != "" {
		shape, err := parseShape(c.String("mean-shape"))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ds.Mean = storage.Mean{Shape: shape, DType: domain.Float32, Data: data}
	}

	m, closeStore, err := openManifest(c)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := m.Import(context.Background(), ds); err != nil {
		return err
	}
	return write(c, summarize(ds))
}

type datasetSummary struct {
	Name       string `json:"name"`
	TrainFiles int    `json:"train_files"`
	ValFiles   int    `json:"val_files"`
	MeanShape  []int  `json:"mean_shape"`
	MeanSize   string `json:"mean_size"`
}

func summarize(ds *storage.Dataset) datasetSummary {
	return datasetSummary{
		Name:       ds.Name,
		TrainFiles: len(ds.TrainFiles),
		ValFiles:   len(ds.ValFiles),
		MeanShape:  ds.Mean.Shape,
		MeanSize:   humanize.IBytes(uint64(len(ds.Mean.Data))),
	}
}

func manifestShow(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("dataset name required")
	}
	m, closeStore, err := openManifest(c)
	if err != nil {
		return err
	}
	defer closeStore()

	ds, err := m.Get(context.Background(), name)
	if err != nil {
		return err
	}
	return write(c, summarize(ds))
}

func manifestList(c *cli.Context) error {
	m, closeStore, err := openManifest(c)
	if err != nil {
		return err
	}
	defer closeStore()

	names, err := m.Names(context.Background())
	if err != nil {
		return err
	}
	if f, _ := output.ParseFormat(ParseGlobalFlags(c).Output); f == output.FormatTable {
		t := output.NewTable("NAME")
		for _, n := range names {
			t.AddRow(n)
		}
		return output.NewFormatter(f).Format(c.App.Writer, t)
	}
	return write(c, names)
}
