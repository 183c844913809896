package main

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth           = 24
	nameWidth          = 28
	entryViewport      = 14
	tickInterval       = 120 * time.Millisecond
	openCommandTimeout = 10 * time.Second // Timeout for open commands
	shutdownTimeout    = 3 * time.Second  // Wait for workers and cache writes on exit
	maxStatusPath      = 60
)

var (
	colorPurple = lipgloss.Color("5")
	colorGray   = lipgloss.Color("8")
	colorRed    = lipgloss.Color("1")
	colorYellow = lipgloss.Color("11")
	colorGreen  = lipgloss.Color("2")
	colorCyan   = lipgloss.Color("6")

	titleStyle    = lipgloss.NewStyle().Foreground(colorPurple).Bold(true)
	grayStyle     = lipgloss.NewStyle().Foreground(colorGray)
	cyanStyle     = lipgloss.NewStyle().Foreground(colorCyan)
	yellowStyle   = lipgloss.NewStyle().Foreground(colorYellow)
	greenStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	redStyle      = lipgloss.NewStyle().Foreground(colorRed)
	boldStyle     = lipgloss.NewStyle().Bold(true)
	selectorStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)
