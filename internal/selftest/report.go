package selftest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Status is the outcome of one scenario.
type Status string

const (
	Pass Status = "pass"
	Fail Status = "fail"
	Skip Status = "skip"
)

// Result is the outcome of one scenario.
type Result struct {
	Name     string        `json:"name" yaml:"name" toml:"name"`
	Status   Status        `json:"status" yaml:"status" toml:"status"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty" toml:"detail,omitempty"`
	Duration time.Duration `json:"-" yaml:"-" toml:"-"`
	// Elapsed is Duration rendered for the encoders.
	Elapsed string `json:"elapsed" yaml:"elapsed" toml:"elapsed"`
}

// Report collects the results of one run.
type Report struct {
	Rig       string           `json:"rig" yaml:"rig" toml:"rig"`
	Passed    int              `json:"passed" yaml:"passed" toml:"passed"`
	Failed    int              `json:"failed" yaml:"failed" toml:"failed"`
	Skipped   int              `json:"skipped" yaml:"skipped" toml:"skipped"`
	Results   []Result         `json:"results,omitempty" yaml:"results,omitempty" toml:"results,omitempty"`
	Integrity *IntegrityResult `json:"integrity,omitempty" yaml:"integrity,omitempty" toml:"integrity,omitempty"`
}

// OK reports whether nothing failed.
func (r *Report) OK() bool {
	return r.Failed == 0 && (r.Integrity == nil || r.Integrity.Error == "")
}

func (r *Report) add(res Result) {
	res.Elapsed = res.Duration.Round(time.Microsecond).String()
	switch res.Status {
	case Pass:
		r.Passed++
	case Fail:
		r.Failed++
	case Skip:
		r.Skipped++
	}
	r.Results = append(r.Results, res)
}

// Options tunes Run.
type Options struct {
	// Timeout bounds each scenario, default 2s.
	Timeout time.Duration
	// Only runs the named scenarios when non-empty.
	Only   []string
	Logger *slog.Logger
}

// Run executes every scenario on a fresh Link from rig.
func Run(ctx context.Context, rig Rig, opts Options) *Report {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	rep := &Report{Rig: rig.Name()}
	for _, sc := range Scenarios() {
		if !selected(sc.Name, opts.Only) {
			continue
		}
		if sc.NeedsLineStatus && !rig.LineStatus() {
			log.Info("scenario skipped", "scenario", sc.Name, "reason", "no line status")
			rep.add(Result{Name: sc.Name, Status: Skip, Detail: "rig reports no line status"})
			continue
		}
		res := runOne(ctx, rig, sc, opts.Timeout)
		if res.Status == Fail {
			log.Warn("scenario failed", "scenario", sc.Name, "detail", res.Detail)
		} else {
			log.Info("scenario passed", "scenario", sc.Name, "elapsed", res.Duration)
		}
		rep.add(res)
	}
	return rep
}

func runOne(ctx context.Context, rig Rig, sc Scenario, timeout time.Duration) Result {
	res := Result{Name: sc.Name, Status: Pass}
	start := time.Now()

	l, err := rig.Open()
	if err != nil {
		res.Status, res.Detail = Fail, "open rig: "+err.Error()
		res.Duration = time.Since(start)
		return res
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if msg := sc.Run(ctx, l); msg != "" {
		res.Status, res.Detail = Fail, msg
	}
	res.Duration = time.Since(start)
	return res
}

func selected(name string, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if o == name {
			return true
		}
	}
	return false
}

// Formats lists the encodings Encode accepts.
var Formats = []string{"text", "json", "yaml", "toml"}

// Encode writes r to w in the named format.
func (r *Report) Encode(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.encodeText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		b, err := toml.Marshal(*r)
		if err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		_, err = w.Write(b)
		return err
	default:
		return fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

func (r *Report) encodeText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "rig %s\n", r.Rig)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "[%s] %-28s %8s", strings.ToUpper(string(res.Status)), res.Name, res.Elapsed)
		if res.Detail != "" {
			fmt.Fprintf(&b, "  %s", res.Detail)
		}
		b.WriteByte('\n')
	}
	if len(r.Results) > 0 {
		fmt.Fprintf(&b, "\nSummary\n  passed = %d\n  failed = %d\n  skipped = %d\n", r.Passed, r.Failed, r.Skipped)
	}
	if in := r.Integrity; in != nil {
		status := "PASS"
		if in.Error != "" {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] integrity seed=%d transfers=%d bytes=%d", status, in.Seed, in.Transfers, in.Bytes)
		if in.Error != "" {
			fmt.Fprintf(&b, "  %s", in.Error)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
