// segtool inspects and converts segmentation files from the command line.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zhuczhuc/trame-slicer-sub000/editor"
	"github.com/zhuczhuc/trame-slicer-sub000/segio"
	"github.com/zhuczhuc/trame-slicer-sub000/segment"
	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

var (
	showHelp    bool
	showVersion bool
	verbose     bool
	configPath  string
)

const helpMessage = `
segtool works with exported segmentation files

	usage: segtool [options] <command>

Commands:

	version
	inspect  <file>               print the segment table and voxel counts
	describe <file>               emit the JSON descriptor for a segmentation
	validate <descriptor.json>    check a descriptor against the schema
	annotate <file> <descriptor.json> <out>
	                              apply descriptor metadata and re-export
`

func init() {
	flag.BoolVar(&showHelp, "h", false, "Show help message")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&verbose, "verbose", false, "Run in verbose mode")
	flag.StringVar(&configPath, "config", "", "Path to TOML configuration")
}

func main() {
	flag.Parse()

	if verbose {
		slicer.SetLogMode(slicer.DebugMode)
	} else {
		slicer.SetLogMode(slicer.WarningMode)
	}
	if configPath != "" {
		cfg, err := editor.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.SetupLogging()
	}

	switch {
	case showVersion:
		fmt.Println(slicer.VersionString())
	case showHelp || flag.NArg() == 0:
		fmt.Print(helpMessage)
		fmt.Println("Options:")
		flag.PrintDefaults()
	default:
		if err := doCommand(flag.Args()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	slicer.LogShutdown()
}

func doCommand(args []string) error {
	switch args[0] {
	case "version":
		fmt.Println(slicer.VersionString())
		return nil
	case "inspect":
		if len(args) != 2 {
			return fmt.Errorf("usage: segtool inspect <file>")
		}
		return doInspect(args[1])
	case "describe":
		if len(args) != 2 {
			return fmt.Errorf("usage: segtool describe <file>")
		}
		return doDescribe(args[1])
	case "validate":
		if len(args) != 2 {
			return fmt.Errorf("usage: segtool validate <descriptor.json>")
		}
		return doValidate(args[1])
	case "annotate":
		if len(args) != 4 {
			return fmt.Errorf("usage: segtool annotate <file> <descriptor.json> <out>")
		}
		return doAnnotate(args[1], args[2], args[3])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func loadSegmentation(path string) (*segment.Segmentation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	seg, err := segio.Import(f)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %v", path, err)
	}
	return seg, nil
}

func doInspect(path string) error {
	seg, err := loadSegmentation(path)
	if err != nil {
		return err
	}
	lm := seg.SegmentLabelmap(seg.FirstSegmentID())
	fmt.Printf("extent:     %s\n", lm.Extent())
	fmt.Printf("voxels:     %d\n", lm.Extent().NumVoxels())
	fmt.Printf("unlabeled:  %d\n", lm.CountLabel(0))
	fmt.Printf("segments:   %d\n", seg.NumSegments())
	for _, id := range seg.SegmentIDs() {
		props, _ := seg.Properties(id)
		fmt.Printf("  %-24s %-20s label %-4d voxels %d\n",
			id, props.Name, props.LabelValue, lm.CountLabel(props.LabelValue))
	}
	return nil
}

func doDescribe(path string) error {
	seg, err := loadSegmentation(path)
	if err != nil {
		return err
	}
	data, err := segio.NewDescriptor(seg).Bytes()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func doValidate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := segio.ParseDescriptor(data); err != nil {
		return err
	}
	fmt.Printf("%s is a valid segmentation descriptor\n", path)
	return nil
}

func doAnnotate(inPath, descriptorPath, outPath string) error {
	seg, err := loadSegmentation(inPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return err
	}
	d, err := segio.ParseDescriptor(data)
	if err != nil {
		return err
	}
	segio.ApplyDescriptor(seg, d)

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return segio.Export(out, seg, slicer.Zstd)
}
