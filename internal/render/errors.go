package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// ErrSetup marks failures during one-time initialization. Anything carrying
// this mark is fatal: the process logs it and exits without entering the
// main loop. Frame-path conditions never carry it; they are either
// recoverable surface staleness or logged warnings.
var ErrSetup = errors.New("renderer setup failed")

// setupFailure wraps an initialization error with context and the fatal
// setup mark.
func setupFailure(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrSetup)
}

// IsSetupFailure reports whether err originated in the setup sequence.
func IsSetupFailure(err error) bool {
	return errors.Is(err, ErrSetup)
}

// staleSurface reports whether a swapchain result means the surface no
// longer matches the swapchain and a rebuild is required. Suboptimal is
// deliberately excluded: an acquired suboptimal image is still presentable.
func staleSurface(res common.VkResult) bool {
	return res == khr_swapchain.VKErrorOutOfDate
}

// suboptimalSurface reports a still-usable but mismatched surface.
func suboptimalSurface(res common.VkResult) bool {
	return res == khr_swapchain.VKSuboptimal
}
