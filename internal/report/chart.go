package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/mkkukul/Elif-Hoca/internal/dashboard"
	"github.com/mkkukul/Elif-Hoca/internal/model"
)

// Chart sizes in pixels.
const (
	ChartWidth  = 800
	ChartHeight = 360
)

var (
	colorBackground = color.White
	colorGrid       = color.RGBA{R: 0xe2, G: 0xe8, B: 0xf0, A: 0xff}
	colorAxis       = color.RGBA{R: 0x64, G: 0x74, B: 0x8b, A: 0xff}
	colorLine       = color.RGBA{R: 0x0d, G: 0x94, B: 0x88, A: 0xff}
)

const (
	marginLeft   = 48.0
	marginRight  = 16.0
	marginTop    = 24.0
	marginBottom = 56.0
)

// NetChartPNG renders the subject nets of an exam as a bar chart.
func NetChartPNG(exam *model.ExamRecord, width, height int) ([]byte, error) {
	dc := newCanvas(width, height)
	if exam == nil || len(exam.Nets) == 0 {
		return encode(dc)
	}

	lo, hi := 0.0, 0.0
	for _, n := range exam.Nets {
		lo = math.Min(lo, n.Net)
		hi = math.Max(hi, n.Net)
	}
	lo, hi, step := niceRange(lo, hi)

	plotW := float64(width) - marginLeft - marginRight
	plotH := float64(height) - marginTop - marginBottom
	y := func(v float64) float64 { return marginTop + (hi-v)/(hi-lo)*plotH }

	drawYGrid(dc, lo, hi, step, y, float64(width))

	slot := plotW / float64(len(exam.Nets))
	barW := slot * 0.6
	zero := y(0)
	for i, n := range exam.Nets {
		x := marginLeft + float64(i)*slot + (slot-barW)/2
		top, bottom := y(n.Net), zero
		if n.Net < 0 {
			top, bottom = zero, y(n.Net)
		}
		c, err := parseHex(dashboard.PaletteColor(i))
		if err != nil {
			return nil, err
		}
		dc.SetColor(c)
		dc.DrawRectangle(x, top, barW, bottom-top)
		dc.Fill()

		dc.SetColor(colorAxis)
		dc.DrawStringAnchored(dashboard.Format(n.Net), x+barW/2, top-8, 0.5, 0)
		drawLabel(dc, n.Subject, x+barW/2, float64(height)-marginBottom+16, slot)
	}

	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(marginLeft, zero, float64(width)-marginRight, zero)
	dc.Stroke()
	return encode(dc)
}

// TrendChartPNG renders the success history of a topic as a line chart on a 0-100 scale.
func TrendChartPNG(trend *model.TopicTrend, width, height int) ([]byte, error) {
	dc := newCanvas(width, height)
	plotW := float64(width) - marginLeft - marginRight
	plotH := float64(height) - marginTop - marginBottom
	y := func(v float64) float64 { return marginTop + (100-v)/100*plotH }

	drawYGrid(dc, 0, 100, 20, y, float64(width))
	if trend == nil || len(trend.History) == 0 {
		return encode(dc)
	}

	n := len(trend.History)
	x := func(i int) float64 {
		if n == 1 {
			return marginLeft + plotW/2
		}
		return marginLeft + float64(i)*plotW/float64(n-1)
	}

	dc.SetColor(colorLine)
	dc.SetLineWidth(3)
	for i, p := range trend.History {
		if i == 0 {
			dc.MoveTo(x(i), y(clamp(p.SuccessRate)))
		} else {
			dc.LineTo(x(i), y(clamp(p.SuccessRate)))
		}
	}
	dc.Stroke()

	slot := plotW / float64(n)
	for i, p := range trend.History {
		v := clamp(p.SuccessRate)
		dc.SetColor(colorLine)
		dc.DrawCircle(x(i), y(v), 5)
		dc.Fill()
		dc.SetColor(colorAxis)
		dc.DrawStringAnchored("%"+strconv.FormatFloat(v, 'f', 0, 64), x(i), y(v)-12, 0.5, 0)
		drawLabel(dc, p.Date, x(i), float64(height)-marginBottom+16, slot)
	}
	return encode(dc)
}

func newCanvas(width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackground)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	return dc
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func drawYGrid(dc *gg.Context, lo, hi, step float64, y func(float64) float64, width float64) {
	dc.SetLineWidth(1)
	for v := lo; v <= hi+step/2; v += step {
		dc.SetColor(colorGrid)
		dc.DrawLine(marginLeft, y(v), width-marginRight, y(v))
		dc.Stroke()
		dc.SetColor(colorAxis)
		dc.DrawStringAnchored(strconv.FormatFloat(v, 'f', -1, 64), marginLeft-6, y(v), 1, 0.35)
	}
}

// drawLabel draws a centred axis label, shortened to fit maxW.
func drawLabel(dc *gg.Context, s string, cx, cy, maxW float64) {
	s = foldASCII(s)
	if w, _ := dc.MeasureString(s); w > maxW-4 {
		for len(s) > 1 {
			s = s[:len(s)-1]
			if w, _ := dc.MeasureString(s + "."); w <= maxW-4 {
				break
			}
		}
		s += "."
	}
	dc.DrawStringAnchored(s, cx, cy, 0.5, 0.5)
}

// niceRange widens [lo, hi] to round grid steps. The range always contains 0.
func niceRange(lo, hi float64) (float64, float64, float64) {
	if hi-lo < 1 {
		hi = lo + 1
	}
	raw := (hi - lo) / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	step := mag
	for _, m := range []float64{1, 2, 5, 10} {
		if m*mag >= raw {
			step = m * mag
			break
		}
	}
	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func parseHex(s string) (color.Color, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, fmt.Errorf("parse colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
