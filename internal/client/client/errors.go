package client

import (
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/common"
)

var (
	ErrUnavailable  = fmt.Errorf("server unavailable: %w", common.ErrTransport)
	ErrUnauthorized = fmt.Errorf("%w: %w", common.ErrUnauthorized, common.ErrTransport)
)
