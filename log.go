// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package parkrt

import "log/slog"

// logger is the pool's cold-path diagnostic sink. parkrt never logs on a
// hot path (park/unpark/steal/poll): only events not otherwise surfaced
// to the caller (e.g. a worker spawn failure) get a line, so a caller
// debugging a stuck pool has somewhere to look. See DESIGN.md for why this
// is stdlib log/slog rather than the pack's logiface-slog.
type logger = *slog.Logger

func defaultLogger() logger {
	return slog.Default()
}
