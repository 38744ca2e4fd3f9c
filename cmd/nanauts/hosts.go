package main

import (
	"fmt"
	"io"
)

// #region console-hosts

// console stands in for the renderer and audio engine: every command the
// listeners issue is printed as one line.
type console struct {
	w io.Writer
}

func (c console) emit(system, action, id string) {
	fmt.Fprintf(c.w, "  %-7s %-7s %s\n", system, action, id)
}

type panelHost struct{ console }

func (h panelHost) Show(id string) { h.emit("panel", "show", id) }
func (h panelHost) Hide(id string) { h.emit("panel", "hide", id) }

type musicHost struct{ console }

func (h musicHost) Play(id string)   { h.emit("music", "play", id) }
func (h musicHost) Stop(id string)   { h.emit("music", "stop", id) }
func (h musicHost) Pause(id string)  { h.emit("music", "pause", id) }
func (h musicHost) Resume(id string) { h.emit("music", "resume", id) }
func (h musicHost) SetVolume(v float64) {
	h.emit("music", "volume", fmt.Sprintf("%.2f", v))
}

type dialogHost struct{ console }

func (h dialogHost) Play(id string)   { h.emit("dialog", "play", id) }
func (h dialogHost) Stop(id string)   { h.emit("dialog", "stop", id) }
func (h dialogHost) Pause(id string)  { h.emit("dialog", "pause", id) }
func (h dialogHost) Resume(id string) { h.emit("dialog", "resume", id) }

type sfxHost struct{ console }

func (h sfxHost) PlaySFX(id string) { h.emit("sfx", "play", id) }

// #endregion console-hosts
