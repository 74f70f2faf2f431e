package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/service"
	"github.com/99minutos/shipping-central/internal/dane"
)

const barWidth = 20

// RenderTracking prints a tracking result as a progress bar followed by the
// history, newest first.
func RenderTracking(w io.Writer, res *domain.TrackingResult) {
	carrier := res.Carrier
	if c, ok := domain.LookupCarrier(res.Carrier); ok {
		carrier = c.Name
	}
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint(res.TrackingNumber), color.New(color.FgCyan).Sprintf("(%s)", carrier))

	status := domain.ShipmentStatus(res.Status)
	if status.Known() {
		fmt.Fprintln(w, renderProgress(service.ProgressFor(status)))
	} else if res.Status != "" {
		fmt.Fprintf(w, "  Estado: %s\n", res.Status)
	}
	fmt.Fprintln(w)

	if len(res.History) == 0 {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("  Aún no hay eventos de rastreo para esta guía"))
		return
	}
	for i, h := range res.History {
		marker := color.New(color.FgHiBlack).Sprint("○")
		if i == 0 {
			marker = color.New(color.FgGreen).Sprint("●")
		}
		fmt.Fprintf(w, "  %s %s  %s\n", marker, h.Date, h.Status)
		if h.Description != "" {
			fmt.Fprintf(w, "      %s\n", h.Description)
		}
		if h.Location != "" {
			fmt.Fprintf(w, "      %s\n", color.New(color.FgHiBlack).Sprint(h.Location))
		}
	}
}

func renderProgress(p service.Progress) string {
	filled := p.Percent * barWidth / 100
	var c *color.Color
	switch p.Color {
	case service.ProgressGreen:
		c = color.New(color.FgGreen)
	case service.ProgressRed:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgBlue)
	}
	bar := c.Sprint(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("  %s %3d%%  %s", bar, p.Percent, p.StatusLabel)
}

// RenderDane prints municipality matches one per line.
func RenderDane(w io.Writer, entries []dane.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("sin coincidencias"))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s\n", color.New(color.FgCyan).Sprint(e.Code), e.Label())
	}
}
