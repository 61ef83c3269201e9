package restexecutor

import (
	"errors"
	"net/http"

	"github.com/criyle/code-runner/cmd/code-runner/model"
	"github.com/criyle/code-runner/language"
	"github.com/criyle/code-runner/worker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cmdHandle struct {
	worker worker.Worker
	logger *zap.Logger
}

// NewCmdHandle creates a new command handle
func NewCmdHandle(worker worker.Worker, logger *zap.Logger) Register {
	return &cmdHandle{
		worker: worker,
		logger: logger,
	}
}

func (c *cmdHandle) Register(r *gin.Engine) {
	r.POST("/run", c.handleRun)
}

func (c *cmdHandle) handleRun(ctx *gin.Context) {
	var req model.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	r, err := model.ConvertRequest(&req)
	if err != nil {
		abortWithError(ctx, http.StatusBadRequest, err)
		return
	}
	c.logger.Debug("request", zap.String("requestId", r.RequestID), zap.String("language", r.Language), zap.Int("sourceSize", len(r.Source)))
	rt := <-c.worker.Submit(ctx.Request.Context(), r)
	if rt.Error != nil {
		status := http.StatusInternalServerError
		if errors.Is(rt.Error, language.ErrUnsupportedLanguage) {
			status = http.StatusBadRequest
		}
		abortWithError(ctx, status, rt.Error)
		return
	}
	c.logger.Debug("response", zap.String("requestId", r.RequestID), zap.Stringer("result", rt.Result))
	ctx.JSON(http.StatusOK, model.ConvertResponse(rt.Result))
}

func abortWithError(ctx *gin.Context, status int, err error) {
	ctx.Error(err)
	ctx.AbortWithStatusJSON(status, model.ErrorResponse{Error: err.Error()})
}
