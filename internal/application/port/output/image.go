package output

import "nav-agent/internal/domain/entity"

type ScreenshotPreparer interface {
	Prepare(shot entity.Screenshot) (entity.Screenshot, error)
}
