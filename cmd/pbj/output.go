package main

import (
	"fmt"

	"github.com/fatih/color"

	"pbjrag/internal/blessing"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
)

func header(format string, args ...interface{}) string {
	return headerColor.Sprintf(format, args...)
}

func errorf(format string, args ...interface{}) string {
	return errColor.Sprintf(format, args...)
}

func muted(format string, args ...interface{}) string {
	return dimColor.Sprintf(format, args...)
}

// tierLabel renders a tier with its glyph, colored by quality.
func tierLabel(t blessing.Tier) string {
	s := fmt.Sprintf("%s %s", t.Symbol(), t)
	switch t {
	case blessing.Positive:
		return okColor.Sprint(s)
	case blessing.Neutral:
		return warnColor.Sprint(s)
	}
	return errColor.Sprint(s)
}
