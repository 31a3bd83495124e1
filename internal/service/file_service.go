package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"devconnect/pkg/config"
	apperrors "devconnect/pkg/errors"
	"devconnect/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxFileSize  = 5 << 20
	defaultPublicPrefix = "/uploads"
	MaxPostImages       = 5
)

// 上传类别, 决定存储子目录
const (
	UploadAvatar    = "avatar"
	UploadCover     = "cover"
	UploadPostImage = "posts"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// FileService 管理本地图片存储
type FileService struct {
	basePath     string
	publicPrefix string
	maxFileSize  int64
}

// FileInfo 包含文件的元数据
type FileInfo struct {
	ID       string `json:"id"`
	Name     string `json:"filename"`
	URL      string `json:"url"`
	Path     string `json:"-"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// NewFileService 创建新的文件服务
func NewFileService() (*FileService, error) {
	// 从配置中获取存储路径，或使用默认值
	s := &FileService{basePath: "uploads", publicPrefix: defaultPublicPrefix, maxFileSize: defaultMaxFileSize}
	if cfg := config.GlobalConfig.File; cfg != nil {
		if cfg.StoragePath != "" {
			s.basePath = cfg.StoragePath
		}
		if cfg.PublicPrefix != "" {
			s.publicPrefix = strings.TrimRight(cfg.PublicPrefix, "/")
		}
		if cfg.MaxFileSize > 0 {
			s.maxFileSize = cfg.MaxFileSize
		}
	}

	// 确保目录存在
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return s, nil
}

func (s *FileService) BasePath() string {
	return s.basePath
}

func (s *FileService) PublicPrefix() string {
	return s.publicPrefix
}

// StoreImage 校验大小与真实内容类型后保存, 返回可公开访问的 URL
func (s *FileService) StoreImage(file *multipart.FileHeader, userID uint, kind string) (*FileInfo, error) {
	if file.Size > s.maxFileSize {
		return nil, apperrors.Validation(fmt.Sprintf("file too large, maximum size is %s", humanize.IBytes(uint64(s.maxFileSize))), nil)
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperrors.Validation("failed to open uploaded file", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, apperrors.Validation("failed to read uploaded file", err)
	}
	if !allowedImageTypes[mtype.String()] {
		return nil, apperrors.Validation("only image files are allowed", nil)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.Internal("rewind uploaded file", err)
	}

	id := uuid.NewString()
	filename := id + mtype.Extension()
	relDir := path.Join(fmt.Sprintf("user_%d", userID), kind)

	dir := filepath.Join(s.basePath, filepath.FromSlash(relDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.Internal("create upload directory", err)
	}

	filePath := filepath.Join(dir, filename)
	dst, err := os.Create(filePath)
	if err != nil {
		return nil, apperrors.Internal("create file", err)
	}
	defer dst.Close()

	// 多读一个字节以发现声明大小与实际内容不符的情况
	written, err := io.Copy(dst, io.LimitReader(src, s.maxFileSize+1))
	if err != nil {
		os.Remove(filePath)
		return nil, apperrors.Internal("save file", err)
	}
	if written > s.maxFileSize {
		os.Remove(filePath)
		return nil, apperrors.Validation(fmt.Sprintf("file too large, maximum size is %s", humanize.IBytes(uint64(s.maxFileSize))), nil)
	}

	info := &FileInfo{
		ID:       id,
		Name:     file.Filename,
		URL:      s.publicPrefix + "/" + path.Join(relDir, filename),
		Path:     filePath,
		Size:     written,
		MimeType: mtype.String(),
	}

	logger.L.Info("File stored successfully",
		zap.String("id", info.ID),
		zap.String("name", info.Name),
		zap.String("size", humanize.IBytes(uint64(info.Size))),
		zap.Uint("userID", userID))

	return info, nil
}

// StoreImages 批量保存, 任何一个失败时删除已保存的文件
func (s *FileService) StoreImages(files []*multipart.FileHeader, userID uint, kind string) ([]*FileInfo, error) {
	if len(files) == 0 {
		return nil, apperrors.Validation("no files uploaded", nil)
	}
	if len(files) > MaxPostImages {
		return nil, apperrors.Validation(fmt.Sprintf("at most %d images are allowed", MaxPostImages), nil)
	}

	infos := make([]*FileInfo, 0, len(files))
	for _, f := range files {
		info, err := s.StoreImage(f, userID, kind)
		if err != nil {
			for _, stored := range infos {
				os.Remove(stored.Path)
			}
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
