package api

import (
	"net/http"

	"devconnect/internal/service"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipart 表单整体上限, 单个文件大小由 FileService 校验
const maxMultipartMemory = 32 << 20

// FileHandler 处理图片上传, 返回可公开访问的 URL
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建新的文件处理器
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

func (h *FileHandler) UploadAvatar(c *gin.Context) {
	h.uploadSingle(c, "avatar", service.UploadAvatar, "Avatar uploaded successfully")
}

func (h *FileHandler) UploadCover(c *gin.Context) {
	h.uploadSingle(c, "cover", service.UploadCover, "Cover image uploaded successfully")
}

func (h *FileHandler) uploadSingle(c *gin.Context, field, kind, message string) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	// 从表单数据中获取文件
	file, err := c.FormFile(field)
	if err != nil {
		logger.L.Warn("Failed to get file from request", zap.String("field", field), zap.Error(err))
		respondError(c, apperrors.Validation("no file uploaded", err))
		return
	}

	info, err := h.fileService.StoreImage(file, userID, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "url": info.URL})
}

// UploadPostImages 字段名 images, 最多 5 张
func (h *FileHandler) UploadPostImages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperrors.Validation("no files uploaded", err))
		return
	}

	infos, err := h.fileService.StoreImages(form.File["images"], userID, service.UploadPostImage)
	if err != nil {
		respondError(c, err)
		return
	}

	urls := make([]string, 0, len(infos))
	for _, info := range infos {
		urls = append(urls, info.URL)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Images uploaded successfully", "urls": urls})
}
