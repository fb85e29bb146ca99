package storage

import "errors"

// ErrEmptySymbol is returned when a watchlist upsert carries no symbol
var ErrEmptySymbol = errors.New("watchlist entry has no symbol")

// ErrNoSymbolColumn is returned when a positions or watchlist feed has no symbol column
var ErrNoSymbolColumn = errors.New("feed has no symbol column")
