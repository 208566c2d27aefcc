package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/domain"
	"github.com/mkessler/libmirror/internal/repository"
)

// CollectionsHandler serves the library's collection tree so front ends
// can offer a picker for the export root and path mask.
type CollectionsHandler struct {
	opener repository.Opener
	cfg    *config.Config
	logger *slog.Logger
}

// NewCollectionsHandler creates a new collections handler.
func NewCollectionsHandler(opener repository.Opener, cfg *config.Config, logger *slog.Logger) *CollectionsHandler {
	return &CollectionsHandler{
		opener: opener,
		cfg:    cfg,
		logger: logger,
	}
}

// CollectionNode is one node of the JSON collection tree.
type CollectionNode struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Children []CollectionNode `json:"children"`
}

// CollectionsResponse is the response for the collection listing.
type CollectionsResponse struct {
	Tree              []CollectionNode `json:"tree"`
	DefaultCollection string           `json:"default_collection"`
	OutputRoot        string           `json:"output_root"`
}

// List handles GET /collections - the nested collection tree.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	lib, err := h.opener.Open(r.Context())
	if err != nil {
		h.logger.Error("failed to open library", "error", err)
		http.Error(w, `{"error": "library database unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer lib.Close()

	collections, err := lib.ListCollections(r.Context())
	if err != nil {
		h.logger.Error("failed to list collections", "error", err)
		http.Error(w, `{"error": "failed to list collections"}`, http.StatusInternalServerError)
		return
	}

	forest, err := domain.BuildForest(collections)
	if err != nil {
		h.logger.Error("failed to build collection tree", "error", err)
		http.Error(w, `{"error": "invalid collection tree"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CollectionsResponse{
		Tree:              buildTree(forest.Roots),
		DefaultCollection: h.cfg.Export.DefaultCollection,
		OutputRoot:        h.cfg.Export.OutputRoot,
	})
}

func buildTree(nodes []*domain.CollectionNode) []CollectionNode {
	tree := make([]CollectionNode, 0, len(nodes))
	for _, node := range nodes {
		tree = append(tree, CollectionNode{
			ID:       int64(node.ID),
			Name:     node.Name,
			Children: buildTree(node.Children),
		})
	}
	return tree
}
