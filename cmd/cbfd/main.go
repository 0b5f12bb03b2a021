// Package main provides the cbfd command line tool.
//
// Usage:
//
//	cbfd version
//	cbfd init -config layer.yaml -input-dim 16 -mw 0.2 -mb 0.8 -out codes.cbfd
//	cbfd forward -weights codes.cbfd -input batch.json
//	cbfd inspect -weights codes.cbfd
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/cbfd/internal/nn"
	"github.com/born-ml/cbfd/internal/serialization"
	"github.com/born-ml/cbfd/internal/tensor"
)

const version = "v0.1.0"

var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)
	log.SetPrefix("cbfd: ")

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "cbfd %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  init       Create a layer from a config and save it")
	fmt.Fprintln(w, "  forward    Run a saved layer on a JSON batch")
	fmt.Fprintln(w, "  inspect    Print the header and config of a saved layer")
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "cbfd %s\n", version)
		return nil
	case "init":
		return runInit(args[1:], stdout)
	case "forward":
		return runForward(args[1:], stdout)
	case "inspect":
		return runInspect(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// referenceFlag is an optional scalar reference value.
type referenceFlag struct {
	value *float64
}

func (f *referenceFlag) String() string {
	if f.value == nil {
		return ""
	}
	return strconv.FormatFloat(*f.value, 'g', -1, 64)
}

func (f *referenceFlag) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.value = &v
	return nil
}

func (f *referenceFlag) tensor() *tensor.Tensor {
	if f.value == nil {
		return nil
	}
	return tensor.Scalar(*f.value)
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "layer config (.yaml, .yml or .json)")
		units      = fs.Int("units", 0, "number of code units, overrides the config")
		inputDim   = fs.Int("input-dim", 0, "input feature dimension")
		seed       = fs.Uint64("seed", 0, "kernel initialization seed (0 picks a random seed)")
		out        = fs.String("out", "layer.cbfd", "output file")
		noRefs     = fs.Bool("no-references", false, "do not store m_w and m_b in the file")
		mw, mb     referenceFlag
	)
	fs.Var(&mw, "mw", "within-class reference (scalar)")
	fs.Var(&mb, "mb", "between-class reference (scalar)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if mw.value == nil || mb.value == nil {
		return fmt.Errorf("init: -mw and -mb are required")
	}
	if *inputDim <= 0 {
		return fmt.Errorf("init: -input-dim must be positive")
	}

	cfg := nn.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = readConfig(*configPath); err != nil {
			return err
		}
	}
	if *units > 0 {
		cfg.Units = *units
	}
	cfg.BatchInputShape = tensor.Shape{tensor.Unknown, *inputDim}

	if *seed != 0 {
		cfg.KernelInitializer = seededInitializer(cfg.KernelInitializer, *seed)
	}

	layer, err := nn.FromConfig(cfg, mw.tensor(), mb.tensor())
	if err != nil {
		return err
	}

	err = nn.SaveCBFD(*out, layer, nn.SaveOptions{
		IncludeReferences: !*noRefs,
		Metadata:          map[string]string{"created_by": "cbfd " + version},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s: %s units=%d input_dim=%d\n", *out, layer.Name(), layer.Units(), layer.InputDim())
	return nil
}

// seededInitializer returns a copy of id with its seed set.
func seededInitializer(id *nn.Identifier, seed uint64) *nn.Identifier {
	out := nn.Identifier{ClassName: "GlorotUniform", Config: map[string]any{"seed": seed}}
	if id != nil {
		out.ClassName = id.ClassName
		for k, v := range id.Config {
			if k != "seed" {
				out.Config[k] = v
			}
		}
	}
	return &out
}

func readConfig(path string) (nn.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nn.Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return nn.ParseConfigJSON(data)
	default:
		return nn.ParseConfigYAML(data)
	}
}

// forwardResult is the JSON document printed by forward.
type forwardResult struct {
	Layer string      `json:"layer"`
	Codes [][]float64 `json:"codes"`
	Loss  [][]float64 `json:"loss"`
	Total float64     `json:"total"`
}

func runForward(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("forward", flag.ContinueOnError)
	var (
		weights   = fs.String("weights", "", "saved layer (.cbfd)")
		inputPath = fs.String("input", "-", "JSON batch [[...], ...], - for stdin")
		mw, mb    referenceFlag
	)
	fs.Var(&mw, "mw", "override the stored within-class reference")
	fs.Var(&mb, "mb", "override the stored between-class reference")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weights == "" {
		return fmt.Errorf("forward: -weights is required")
	}

	layer, err := nn.LoadCBFD(*weights, mw.tensor(), mb.tensor())
	if err != nil {
		return err
	}
	x, err := readBatch(*inputPath)
	if err != nil {
		return err
	}

	b, loss, err := layer.Forward(x)
	if err != nil {
		return err
	}
	res := forwardResult{
		Layer: layer.Name(),
		Codes: toRows(b),
		Loss:  toRows(loss),
		Total: loss.Sum(),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readBatch(path string) (*tensor.Tensor, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return tensor.FromRows(rows)
}

func toRows(t *tensor.Tensor) [][]float64 {
	shape := t.Shape()
	cols := shape.Last()
	data := t.Data()
	rows := make([][]float64, 0, len(data)/max(cols, 1))
	for i := 0; i+cols <= len(data) && cols > 0; i += cols {
		rows = append(rows, append([]float64(nil), data[i:i+cols]...))
	}
	return rows
}

// inspectResult is the YAML document printed by inspect.
type inspectResult struct {
	ID            string            `yaml:"id"`
	CreatedAt     time.Time         `yaml:"created_at"`
	FormatVersion int               `yaml:"format_version"`
	LayerType     string            `yaml:"layer_type"`
	Checksum      string            `yaml:"checksum"`
	References    bool              `yaml:"references"`
	Tensors       map[string][]int  `yaml:"tensors"`
	Metadata      map[string]string `yaml:"metadata,omitempty"`
	Config        nn.Config         `yaml:"config"`
}

func runInspect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	weights := fs.String("weights", "", "saved layer (.cbfd)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weights == "" {
		return fmt.Errorf("inspect: -weights is required")
	}

	r, err := serialization.NewReader(*weights)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	cfg, err := nn.ParseConfigJSON(h.Config)
	if err != nil {
		return err
	}
	sum := r.Checksum()
	res := inspectResult{
		ID:            h.ID,
		CreatedAt:     h.CreatedAt,
		FormatVersion: h.FormatVersion,
		LayerType:     h.LayerType,
		Checksum:      fmt.Sprintf("%x", sum[:]),
		References:    h.References,
		Tensors:       make(map[string][]int, len(h.Tensors)),
		Metadata:      h.Metadata,
		Config:        cfg,
	}
	for _, meta := range h.Tensors {
		res.Tensors[meta.Name] = meta.Shape
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
