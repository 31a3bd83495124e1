package api

import (
	"net/http"

	"devconnect/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// ListUsers ?search=&skills=go,rust&page=&limit=
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, err := h.userService.ListUsers(c.Request.Context(), service.ListUsersRequest{
		Search: c.Query("search"),
		Skills: splitList(c.Query("skills")),
		Page:   pagination(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users":        page.Items,
		"total":        page.Total,
		"total_pages":  page.TotalPages,
		"current_page": page.Page,
	})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	viewerID, _ := getUserIDFromContext(c)
	profile, err := h.userService.GetUser(c.Request.Context(), id, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *UserHandler) GetUserByUsername(c *gin.Context) {
	viewerID, _ := getUserIDFromContext(c)
	profile, err := h.userService.GetUserByUsername(c.Request.Context(), c.Param("username"), viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *UserHandler) ToggleFollow(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.userService.ToggleFollow(c.Request.Context(), userID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "User unfollowed"
	if result.IsFollowing {
		message = "User followed"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "is_following": result.IsFollowing})
}

func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.userService.Followers(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers": users})
}

func (h *UserHandler) Following(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.userService.Following(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": users})
}

func (h *UserHandler) Suggested(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	users, err := h.userService.Suggested(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggested_users": users})
}
