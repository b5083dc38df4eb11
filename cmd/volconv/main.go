// Command volconv is the batch entrypoint (C9): it wires the element
// reader and series assembler (C1/C4) over a directory tree, resolves
// each sub-series' geometry (C5), and writes NIfTI/GIPL volumes plus an
// index.json sidecar (C6/C8), optionally renaming outputs through a Name
// Matcher config (C7). It is intentionally thin: no resumable job
// queue, no parallel scan, no interactive wizard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mjw/volconv/dicomlog"
	"github.com/mjw/volconv/giplio"
	"github.com/mjw/volconv/index"
	"github.com/mjw/volconv/match"
	"github.com/mjw/volconv/niftiio"
	"github.com/mjw/volconv/orient"
	"github.com/mjw/volconv/series"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "volconv:", err)
		os.Exit(1)
	}
}

type config struct {
	outDir       string
	format       string
	gzip         bool
	datatype     string
	reorient     string
	matchConfig  string
	indexName    string
	verbosity    int

	single      bool
	splitOrient bool
	roundOrient bool
	roundThresh float64
	nSubSeries  bool
	mosaic      int
	csa         bool
	acr         bool
	slice3D     bool
	sliceInst   bool
	stackUnk    bool
	seqInc      string
	seqExc      string
	typeInc     string
	typeExc     string
	phase       bool
	sar         bool
	timeHack    bool
	pathGlob    string
}

func run(args []string) error {
	fs := flag.NewFlagSet("volconv", flag.ContinueOnError)
	var cfg config
	fs.StringVar(&cfg.outDir, "out", ".", "output directory")
	fs.StringVar(&cfg.format, "format", "nii", "output format: nii, gipl, or both")
	fs.BoolVar(&cfg.gzip, "gzip", false, "gzip-wrap NIfTI output (.nii.gz)")
	fs.StringVar(&cfg.datatype, "datatype", "int16", "voxel datatype: int16, uint16, int32, float32, float64")
	fs.StringVar(&cfg.reorient, "reorient", "", "reorient to canonical plane before writing: axi, sag, cor (default: as scanned)")
	fs.StringVar(&cfg.matchConfig, "match", "", "Name Matcher INI file for output aliasing")
	fs.StringVar(&cfg.indexName, "index", "index.json", "index sidecar filename, written under -out")
	fs.IntVar(&cfg.verbosity, "v", 0, "log verbosity")

	fs.BoolVar(&cfg.single, "single", false, "force every input file into one synthetic study")
	fs.BoolVar(&cfg.splitOrient, "splitorient", false, "split a series into sub-series on differing orientation")
	fs.BoolVar(&cfg.roundOrient, "roundorient", false, "merge near-identical orientations")
	fs.Float64Var(&cfg.roundThresh, "roundorientthresh", 1.0, "per-column angular tolerance in degrees for -roundorient")
	fs.BoolVar(&cfg.nSubSeries, "nsubseries", false, "name sub-series z0000, z0001, ... instead of anatomical short names")
	fs.IntVar(&cfg.mosaic, "mosaic", 0, "force Siemens mosaic unpacking with N tiles (0: auto-detect)")
	fs.BoolVar(&cfg.csa, "csa", true, "parse Siemens CSA headers for mosaic/diffusion/SAR/phase detection")
	fs.BoolVar(&cfg.acr, "acr", true, "enable ACR-NEMA fallback parsing")
	fs.BoolVar(&cfg.slice3D, "slice3d", false, "sort slices by projection of position onto i x j")
	fs.BoolVar(&cfg.sliceInst, "sliceinst", false, "use instance number as slice index when no geometry tags are present")
	fs.BoolVar(&cfg.stackUnk, "stackunk", false, "accept and naively stack files lacking orientation/position")
	fs.StringVar(&cfg.seqInc, "seqinc", "", "include regex on protocol/series description")
	fs.StringVar(&cfg.seqExc, "seqexc", "", "exclude regex on protocol/series description")
	fs.StringVar(&cfg.typeInc, "typeinc", "", "include literal on ImageType component")
	fs.StringVar(&cfg.typeExc, "typeexc", "", "exclude literal on ImageType component")
	fs.BoolVar(&cfg.phase, "phase", false, "extract phase-encoding direction from CSA")
	fs.BoolVar(&cfg.sar, "sar", false, "extract SAR fields from CSA")
	fs.BoolVar(&cfg.timeHack, "timehack", false, "reserved for future use (no-op)")
	fs.StringVar(&cfg.pathGlob, "pathglob", "", "glob restricting which walked paths are read")

	if err := fs.Parse(args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: volconv [flags] <path>...")
	}

	dicomlog.SetLevel(cfg.verbosity)

	switch cfg.format {
	case "nii", "gipl", "both":
	default:
		return fmt.Errorf("unknown -format %q: want nii, gipl, or both", cfg.format)
	}

	opts, err := cfg.seriesOptions()
	if err != nil {
		return err
	}

	datatype, err := parseDatatype(cfg.datatype)
	if err != nil {
		return err
	}

	var reorientTo *orient.Plane
	if cfg.reorient != "" {
		p, err := parsePlane(cfg.reorient)
		if err != nil {
			return err
		}
		reorientTo = &p
	}

	var matcher *match.Matcher
	if cfg.matchConfig != "" {
		matcher, err = match.Load(cfg.matchConfig)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, report := series.Scan(ctx, paths, opts)

	if matcher != nil {
		if err := matcher.FindMatches(matchList(result)); err != nil {
			return fmt.Errorf("loading match config: %w", err)
		}
	}

	images := map[series.StudyKey]map[series.SeriesKey]*orient.Image{}
	outputs := map[series.StudyKey]map[series.SeriesKey]index.Outputs{}

	for studyKey, seriesMap := range result.Studies {
		keys := sortedSeriesKeys(seriesMap)
		for _, seriesKey := range keys {
			e := seriesMap[seriesKey]
			img, out, err := convertEntity(cfg, studyKey, seriesKey, e, datatype, reorientTo, matcher, report)
			if err != nil {
				report.Record(series.ReasonWriterFailure, string(seriesKey), err)
				return fmt.Errorf("writing series %s/%s: %w", studyKey.StudyUID, seriesKey, err)
			}
			if images[studyKey] == nil {
				images[studyKey] = map[series.SeriesKey]*orient.Image{}
				outputs[studyKey] = map[series.SeriesKey]index.Outputs{}
			}
			images[studyKey][seriesKey] = img
			outputs[studyKey][seriesKey] = out
		}
	}

	studies := index.Build(result, images, outputs)
	indexPath := filepath.Join(cfg.outDir, cfg.indexName)
	indexFile, err := os.Create(indexPath)
	if err != nil {
		return err
	}
	defer indexFile.Close()
	if err := index.Write(indexFile, studies); err != nil {
		return fmt.Errorf("writing %s: %w", indexPath, err)
	}

	printSummary(report)
	return nil
}

func (cfg config) seriesOptions() (series.Options, error) {
	opts := series.Options{
		SplitOrient:       cfg.splitOrient,
		RoundOrient:       cfg.roundOrient,
		RoundOrientThresh: cfg.roundThresh,
		NSubSeries:        cfg.nSubSeries,
		Mosaic:            cfg.mosaic,
		CSA:               cfg.csa,
		ACR:               cfg.acr,
		Single:            cfg.single,
		Slice3D:           cfg.slice3D,
		SliceInst:         cfg.sliceInst,
		StackUnk:          cfg.stackUnk,
		TypeInc:           cfg.typeInc,
		TypeExc:           cfg.typeExc,
		Phase:             cfg.phase,
		SAR:               cfg.sar,
		TimeHack:          cfg.timeHack,
		PathGlob:          cfg.pathGlob,
		Progress:          progress,
	}
	if cfg.seqInc != "" {
		re, err := regexp.Compile(cfg.seqInc)
		if err != nil {
			return opts, err
		}
		opts.SeqInc = re
	}
	if cfg.seqExc != "" {
		re, err := regexp.Compile(cfg.seqExc)
		if err != nil {
			return opts, err
		}
		opts.SeqExc = re
	}
	return opts, nil
}

func progress(done, total, warnings int) {
	if done == total || done%50 == 0 {
		fmt.Fprintf(os.Stderr, "\rvolconv: %d/%d files (%d warnings)", done, total, warnings)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func printSummary(report *series.Report) {
	rows := report.Summary()
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "volconv: no warnings or errors")
		return
	}
	fmt.Fprintln(os.Stderr, "volconv: summary")
	for _, row := range rows {
		fmt.Fprintf(os.Stderr, "  %-28s %6d  e.g. %s\n", row.Reason, row.Count, row.Exemplar)
	}
}

func parseDatatype(s string) (niftiio.Type, error) {
	switch strings.ToLower(s) {
	case "bool":
		return niftiio.Bool, nil
	case "int8":
		return niftiio.Int8, nil
	case "uint8":
		return niftiio.UInt8, nil
	case "int16":
		return niftiio.Int16, nil
	case "uint16":
		return niftiio.UInt16, nil
	case "int32":
		return niftiio.Int32, nil
	case "uint32":
		return niftiio.UInt32, nil
	case "float32":
		return niftiio.Float32, nil
	case "float64":
		return niftiio.Float64, nil
	default:
		return 0, fmt.Errorf("unknown -datatype %q", s)
	}
}

func parsePlane(s string) (orient.Plane, error) {
	switch strings.ToLower(s) {
	case "axi", "axial":
		return orient.Axial, nil
	case "sag", "sagittal":
		return orient.Sagittal, nil
	case "cor", "coronal":
		return orient.Coronal, nil
	default:
		return orient.Nonstd, fmt.Errorf("unknown -reorient plane %q", s)
	}
}

func sortedSeriesKeys(m map[series.SeriesKey]*series.Entity) []series.SeriesKey {
	keys := make([]series.SeriesKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// matchList flattens a scan Result into the SeriesInfo batch FindMatches
// needs, one entry per (study, series).
func matchList(result *series.Result) []match.SeriesInfo {
	var out []match.SeriesInfo
	for sk, seriesMap := range result.Studies {
		for serk, e := range seriesMap {
			out = append(out, match.SeriesInfo{
				StudyNo:   sk.StudyUID,
				StudyName: sk.Patient,
				SeriesNo:  string(serk),
				Desc:      e.Desc,
				Type:      e.Type,
				Date:      e.Date,
				Time:      e.Time,
				StudyDate: e.StudyDate,
				StudyTime: e.StudyTime,
			})
		}
	}
	return out
}
