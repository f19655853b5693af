package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

const (
	defaultWindowSize = 10
	maxWindowSize     = 100
)

// windowFromQuery reads the from/to offsets. Missing values default to [0, 10) and
// windows wider than 100 rows are cut to [from, from+100).
func windowFromQuery(c *gin.Context) (models.Window, bool) {
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be an integer"))
		return models.Window{}, false
	}
	to, err := strconv.Atoi(c.DefaultQuery("to", strconv.Itoa(from+defaultWindowSize)))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be an integer"))
		return models.Window{}, false
	}
	if to-from > maxWindowSize {
		to = from + maxWindowSize
	}
	return models.Window{From: from, To: to}, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
