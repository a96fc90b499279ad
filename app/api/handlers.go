package api

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/image-comb/app/feed"
	"github.com/lysyi3m/image-comb/app/harvest"
	"github.com/lysyi3m/image-comb/app/storage"
	"github.com/lysyi3m/image-comb/app/tasks"
)

func NewHandler(metadata *harvest.Metadata, generator GeneratorInterface, orchestrator tasks.OrchestratorInterface, version string) *Handler {
	return &Handler{
		metadata:     metadata,
		generator:    generator,
		orchestrator: orchestrator,
		version:      version,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	category := feed.Category(c.Param("category"))
	if category == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if !slices.Contains(h.categories(), category) {
		slog.Error("Category not configured", "category", category)
		c.Status(http.StatusNotFound)
		return
	}

	items, err := h.metadata.Load(c.Request.Context(), category)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("Storage error", "operation", "load_metadata", "category", category, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(category, items)
	if err != nil {
		slog.Error("RSS generation error", "category", category, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", string(category))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sources":   len(h.orchestrator.Sources()),
	}

	if latest, ok := h.orchestrator.Latest(); ok {
		health["last_run"] = latest.Date
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	latest, ok := h.orchestrator.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No run has completed yet"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.orchestrator.Sources()

	list := make([]map[string]interface{}, 0, len(sources))
	for _, source := range sources {
		resolver := "identity"
		if _, ok := source.Resolver().(feed.RedirectResolver); ok {
			resolver = "redirect"
		}

		list = append(list, map[string]interface{}{
			"name":       source.Name,
			"reader":     source.Reader,
			"enabled":    source.Enabled,
			"limit":      source.Limit,
			"tags":       source.Tags(),
			"resolver":   resolver,
			"categories": source.Categories(),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	runID, err := h.orchestrator.Trigger()
	if errors.Is(err, tasks.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
		return
	}
	if err != nil {
		slog.Error("Error triggering run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run started",
		"run_id":  runID,
	})
}

func (h *Handler) categories() []feed.Category {
	var categories []feed.Category
	for _, source := range h.orchestrator.Sources() {
		for _, category := range source.Categories() {
			if !slices.Contains(categories, category) {
				categories = append(categories, category)
			}
		}
	}
	return categories
}
