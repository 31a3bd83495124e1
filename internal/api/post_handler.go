package api

import (
	"net/http"

	"devconnect/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

func postsResponse(page service.Page[service.PostView]) gin.H {
	return gin.H{
		"posts":        page.Items,
		"total":        page.Total,
		"total_pages":  page.TotalPages,
		"current_page": page.Page,
	}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created successfully", "post": post})
}

// ListPosts ?author=<id>&tags=go,rust&page=&limit=
func (h *PostHandler) ListPosts(c *gin.Context) {
	req := service.ListPostsRequest{
		Tags: splitList(c.Query("tags")),
		Page: pagination(c),
	}
	if c.Query("author") != "" {
		authorID, ok := parseQueryID(c, "author")
		if !ok {
			return
		}
		req.AuthorID = authorID
	}
	viewerID, _ := getUserIDFromContext(c)
	page, err := h.postService.ListPosts(c.Request.Context(), viewerID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, postsResponse(page))
}

func (h *PostHandler) Feed(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	page, err := h.postService.GetFeed(c.Request.Context(), userID, pagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, postsResponse(page))
}

func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	viewerID, _ := getUserIDFromContext(c)
	post, err := h.postService.GetPost(c.Request.Context(), postID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.postService.UpdatePost(c.Request.Context(), postID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully", "post": post})
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.postService.DeletePost(c.Request.Context(), postID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.postService.ToggleLike(c.Request.Context(), postID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) AddComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.AddCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.postService.AddComment(c.Request.Context(), postID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added successfully", "comment": comment})
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseIDParam(c, "comment_id")
	if !ok {
		return
	}
	if err := h.postService.DeleteComment(c.Request.Context(), postID, commentID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
