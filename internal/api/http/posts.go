package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/munsocial/graphbench/internal/sqlstore"
	"github.com/munsocial/graphbench/pkg/types"
)

// SocialStore is the relational side of the social app. *sqlstore.Store
// implements it.
type SocialStore interface {
	ListPosts(ctx context.Context, in sqlstore.ListPostsInput) ([]types.Post, error)
	CreatePost(ctx context.Context, in sqlstore.CreatePostInput) (*types.Post, error)
	Connect(ctx context.Context, userID1, userID2 int64, status types.ConnectionStatus) (*types.Connection, error)
	ListConnections(ctx context.Context, userID int64) ([]types.Connection, error)
}

// ConnectRequest is the body of POST /v1/connections.
type ConnectRequest struct {
	UserID1 int64                  `json:"user_id1"`
	UserID2 int64                  `json:"user_id2"`
	Status  types.ConnectionStatus `json:"status,omitempty"`
}

// SocialHandler serves the home feed, post creation and connections.
type SocialHandler struct {
	store SocialStore
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(store SocialStore) *SocialHandler {
	return &SocialHandler{store: store}
}

// ListPosts handles GET /v1/posts.
func (h *SocialHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	userID, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be an integer", requestID)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", requestID)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", requestID)
		return
	}

	posts, err := h.store.ListPosts(r.Context(), sqlstore.ListPostsInput{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	if posts == nil {
		posts = []types.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreatePost handles POST /v1/posts.
func (h *SocialHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in sqlstore.CreatePostInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), GetRequestID(r.Context()))
		return
	}

	post, err := h.store.CreatePost(r.Context(), in)
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// Connect handles POST /v1/connections.
func (h *SocialHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), GetRequestID(r.Context()))
		return
	}

	c, err := h.store.Connect(r.Context(), req.UserID1, req.UserID2, req.Status)
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListConnections handles GET /v1/users/{id}/connections.
func (h *SocialHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "user id must be a positive integer", GetRequestID(r.Context()))
		return
	}

	conns, err := h.store.ListConnections(r.Context(), userID)
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	if conns == nil {
		conns = []types.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}
