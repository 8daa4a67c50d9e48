package services

import (
	"fmt"
	"io"
	"strings"

	"zeitprognose/models"
	"zeitprognose/regressor"
)

// PrintEstimate writes a human-readable estimate to w.
func PrintEstimate(w io.Writer, title string, systems []models.System, est models.ProjectEstimate) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ⏱  ZEITPROGNOSE %s\033[0m\n", strings.ToUpper(title))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Systems\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(est.Systems) == 0 {
		fmt.Fprintf(w, "  No systems given\n")
	}
	for _, r := range est.Systems {
		var s models.System
		if r.Index >= 0 && r.Index < len(systems) {
			s = systems[r.Index]
		}
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %s\n", r.Index+1, describe(s))
		if r.Failed() {
			fmt.Fprintf(w, "     \033[1;31m%s\033[0m\n", r.Provenance)
			continue
		}
		fmt.Fprintf(w, "     drawing \033[1;32m%6.2f h\033[0m   bom \033[1;32m%6.2f h\033[0m   %s\n",
			r.Times.Drawing, r.Times.BOM, truncate(r.Provenance, 60))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Project total\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Drawing time : \033[1;32m%.2f h\033[0m\n", round2(est.Times.Drawing))
	fmt.Fprintf(w, "  BOM time     : \033[1;32m%.2f h\033[0m\n", round2(est.Times.BOM))
	fmt.Fprintf(w, "  Source       : %s\n", est.Provenance)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintTraining writes the outcome of a training run to w.
func PrintTraining(w io.Writer, report ParseReport, stats FlattenStats, b regressor.Bundle) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🧮 MODEL TRAINING\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Data\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows read          : \033[1m%d\033[0m\n", report.RowsRead)
	fmt.Fprintf(w, "  Rows skipped       : \033[1m%d\033[0m\n", report.RowsSkipped)
	fmt.Fprintf(w, "  Projects rejected  : \033[1m%d\033[0m\n", stats.ProjectsRejected)
	fmt.Fprintf(w, "  Systems skipped    : \033[1m%d\033[0m\n", stats.SystemsSkipped)
	fmt.Fprintf(w, "  Training examples  : \033[1m%d\033[0m\n", b.Examples)
	fmt.Fprintf(w, "  Features (%s)  : \033[1m%d\033[0m\n", b.Schema.Kind, len(b.Schema.Columns))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Hold-out evaluation\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if b.Metrics == nil {
		fmt.Fprintf(w, "  Too few examples for a hold-out split\n")
	} else {
		m := b.Metrics
		fmt.Fprintf(w, "  Split        : %d train / %d test\n", m.TrainSize, m.TestSize)
		fmt.Fprintf(w, "  MAE drawing  : \033[1;32m%.2f h\033[0m   R² %.3f\n", m.MAE.Drawing, m.R2.Drawing)
		fmt.Fprintf(w, "  MAE bom      : \033[1;32m%.2f h\033[0m   R² %.3f\n", m.MAE.BOM, m.R2.BOM)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Model %s (%d trees)\n", b.ID, len(b.Forest.Trees))

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func describe(s models.System) string {
	part := func(p *string) string {
		if p == nil {
			return "?"
		}
		return *p
	}
	area, trades := "?", "?"
	if s.AreaM2 != nil {
		area = fmt.Sprintf("%g m²", *s.AreaM2)
	}
	if s.TradeCount != nil {
		trades = fmt.Sprintf("%d", *s.TradeCount)
	}
	return fmt.Sprintf("%s, %s, cladding %s, roof %s, trades %s",
		part(s.ProductType), area, part(s.SideCladding), part(s.RoofType), trades)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
