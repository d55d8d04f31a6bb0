package routes

import (
	"bufio"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/trelay/trelay/pkg/analysis"
	"github.com/trelay/trelay/pkg/hsp"
	"github.com/trelay/trelay/pkg/narrative"
	"github.com/trelay/trelay/pkg/reportcache"
)

type AnalysisRouter struct {
	Analyser *analysis.Analyser
	Narrator narrative.Narrator

	// Reports is optional - nil disables the whole-report cache.
	Reports *reportcache.Cache
}

func (r *AnalysisRouter) Router(router fiber.Router) {
	router.Post("/", r.analyse)
	router.Post("/stream", r.analyseStream)
	router.Post("/narrative", r.analyseWithNarrative)
}

func (r *AnalysisRouter) runAnalysis(c *fiber.Ctx, request hsp.MetricsRequest, onProgress analysis.ProgressFunc) (*analysis.Report, error) {
	if r.Reports != nil {
		if report := r.Reports.Get(c.Context(), request); report != nil {
			return report, nil
		}
	}

	report, err := r.Analyser.Analyze(c.Context(), request, onProgress)
	if err != nil {
		return nil, err
	}

	if r.Reports != nil {
		r.Reports.Set(c.Context(), request, report)
	}

	return report, nil
}

func (r *AnalysisRouter) analyse(c *fiber.Ctx) error {
	var request hsp.MetricsRequest
	if err := c.BodyParser(&request); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"error": err.Error()})
	}

	report, err := r.runAnalysis(c, request, nil)
	if err != nil {
		return analysisError(c, err)
	}

	return c.JSON(report)
}

func (r *AnalysisRouter) analyseWithNarrative(c *fiber.Ctx) error {
	var request hsp.MetricsRequest
	if err := c.BodyParser(&request); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"error": err.Error()})
	}

	report, err := r.runAnalysis(c, request, nil)
	if err != nil {
		return analysisError(c, err)
	}

	narrativeText, err := r.Narrator.Narrate(c.Context(), report)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"journey_data": report,
		"ai_analysis":  narrativeText,
		"generated_at": time.Now().Format(time.RFC3339),
	})
}

// analyseStream runs the analysis while emitting progress events as an SSE
// style stream, finishing with a complete (or error) event.
func (r *AnalysisRouter) analyseStream(c *fiber.Ctx) error {
	var request hsp.MetricsRequest
	if err := c.BodyParser(&request); err != nil {
		c.SendStatus(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	analyser := r.Analyser

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		var writeLock sync.Mutex

		writeEvent := func(event map[string]any) {
			writeLock.Lock()
			defer writeLock.Unlock()

			eventJSON, err := json.Marshal(event)
			if err != nil {
				return
			}

			w.WriteString("data: ")
			w.Write(eventJSON)
			w.WriteString("\n\n")
			w.Flush()
		}

		report, err := analyser.Analyze(c.Context(), request, func(progress analysis.ProgressEvent) {
			event := map[string]any{
				"type":    "progress",
				"step":    progress.Step,
				"message": progress.Message,
			}

			if progress.Total > 0 {
				event["total"] = progress.Total
				event["current"] = progress.Current
				event["percentage"] = progress.Percentage
			}

			writeEvent(event)
		})

		if err != nil {
			writeEvent(map[string]any{"type": "error", "message": err.Error()})
			return
		}

		writeEvent(map[string]any{"type": "complete", "data": report})
	})

	return nil
}

func analysisError(c *fiber.Ctx, err error) error {
	var upstreamError *hsp.UpstreamError

	switch {
	case errors.Is(err, analysis.ErrNoMatchingServices):
		c.SendStatus(fiber.StatusNotFound)
	case errors.As(err, &upstreamError):
		c.SendStatus(fiber.StatusBadGateway)
	default:
		c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(fiber.Map{"error": err.Error()})
}
