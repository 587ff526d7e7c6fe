package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
)

var ErrNoData = errors.New("no outcomes to plot")

var barColor = color.RGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff}

// Size of the rendered histogram.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

/*
Histogram renders probs as a bar chart with one bar per observed bit-string
in sorted order. The image format follows the extension of path.
*/
func Histogram(probs backend.Probabilities, title, path string) error {
	if len(probs) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Outcome"
	p.Y.Label.Text = "Probability"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	keys := probs.Keys()
	width := vg.Points(float64(min(40, 360/len(keys))))
	bars, err := plotter.NewBarChart(plotter.Values(probs.Values()), width)
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(keys...)

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

// Circuit writes the text diagram of c to path.
func Circuit(c *circuit.Circuit, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, []byte(circuit.Draw(c)), 0o644), "write %s", path)
}

// Bars is a terminal-sized rendition of the histogram.
func Bars(probs backend.Probabilities, width int) string {
	var sb strings.Builder
	for _, key := range probs.Keys() {
		p := probs[key]
		n := int(p*float64(width) + 0.5)
		fmt.Fprintf(&sb, "%s │%s %.3f\n", key, strings.Repeat("█", n), p)
	}
	return sb.String()
}

// Paths returns the histogram and diagram files for a demo under dir.
func Paths(dir, demo string) (histogram, diagram string) {
	base := filepath.Join(dir, strings.ReplaceAll(demo, " ", "_"))
	return base + ".png", base + ".txt"
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return nil
}
