package exception

import "github.com/yanun0323/errors"

// Page view errors
var (
	ErrNotPageView = errors.New("pageview: payload is not a page view")
	ErrNilStore    = errors.New("pageview: nil store")
)
