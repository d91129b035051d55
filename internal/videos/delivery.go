package videos

import "github.com/labstack/echo/v4"

type Handlers interface {
	UploadVideo() echo.HandlerFunc
	GetVideoByID() echo.HandlerFunc
	ListVideos() echo.HandlerFunc
	DeleteVideo() echo.HandlerFunc
	GetProcessingState() echo.HandlerFunc
}
