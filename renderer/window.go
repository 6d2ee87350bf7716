package renderer

import (
	"fmt"
	"runtime"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"go.uber.org/zap"
)

var glInitOnce sync.Once

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// InitGraphics initializes GLFW. Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	return nil
}

// TerminateGraphics shuts down GLFW. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
}

// WindowConfig describes a new window.
type WindowConfig struct {
	Width   int
	Height  int
	Title   string
	Visible bool
}

// Window is one GLFW window with its own quad VAO. All windows share the
// object namespace of the first one, so programs and textures can be used
// from any of them.
type Window struct {
	log     *zap.Logger
	window  *glfw.Window
	quadVAO uint32
	vbo     uint32

	nextID       int
	resize       map[int]func(int, int)
	pointer      map[int]func(float32, float32)
	keyCallbacks map[glfw.Key]func()
}

// NewWindow creates a window sharing objects with share (nil for the first).
func NewWindow(cfg WindowConfig, share *Window, log *zap.Logger) (*Window, error) {
	var sharecontext *glfw.Window
	if share != nil {
		sharecontext = share.window
	}
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if cfg.Visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, sharecontext)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &Window{
		log:          log,
		window:       win,
		resize:       make(map[int]func(int, int)),
		pointer:      make(map[int]func(float32, float32)),
		keyCallbacks: make(map[glfw.Key]func()),
	}

	win.MakeContextCurrent()
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
		if initErr == nil {
			log.Info("OpenGL initialized", zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))))
		}
	})
	if initErr != nil {
		win.Destroy()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}
	// frames are paced by the render loop, not by each swap
	glfw.SwapInterval(0)

	gl.GenVertexArrays(1, &w.quadVAO)
	gl.GenBuffers(1, &w.vbo)
	gl.BindVertexArray(w.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, w.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	win.SetFramebufferSizeCallback(w.glfwFramebufferSizeCallback)
	win.SetCursorPosCallback(w.glfwCursorPosCallback)
	win.SetKeyCallback(w.glfwKeyCallback)
	return w, nil
}

// RegisterKeyCallback runs f when key is pressed while this window has focus.
func (w *Window) RegisterKeyCallback(key glfw.Key, f func()) {
	w.keyCallbacks[key] = f
}

func (w *Window) glfwKeyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if callback, ok := w.keyCallbacks[key]; ok {
		callback()
	}
}

func (w *Window) glfwFramebufferSizeCallback(_ *glfw.Window, width, height int) {
	for _, fn := range w.resize {
		fn(width, height)
	}
}

func (w *Window) glfwCursorPosCallback(_ *glfw.Window, x, y float64) {
	winWidth, winHeight := w.window.GetSize()
	if winWidth <= 0 || winHeight <= 0 {
		return
	}
	nx := float32(x/float64(winWidth))*2 - 1
	ny := -(float32(y/float64(winHeight))*2 - 1)
	for _, fn := range w.pointer {
		fn(nx, ny)
	}
}

func (w *Window) subscribe() int {
	id := w.nextID
	w.nextID++
	return id
}

func (w *Window) OnResize(fn func(width, height int)) func() {
	id := w.subscribe()
	w.resize[id] = fn
	return func() { delete(w.resize, id) }
}

func (w *Window) OnPointer(fn func(x, y float32)) func() {
	id := w.subscribe()
	w.pointer[id] = fn
	return func() { delete(w.pointer, id) }
}

// Listeners reports attached resize and pointer handlers.
func (w *Window) Listeners() int {
	return len(w.resize) + len(w.pointer)
}

// MakeCurrent makes the context current and binds the window's quad.
func (w *Window) MakeCurrent() {
	w.window.MakeContextCurrent()
	gl.BindVertexArray(w.quadVAO)
}

func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

func (w *Window) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *Window) SetShouldClose(v bool) {
	w.window.SetShouldClose(v)
}

func (w *Window) SetTitle(title string) {
	w.window.SetTitle(title)
}

// Clear fills the framebuffer with black.
func (w *Window) Clear() {
	width, height := w.window.GetFramebufferSize()
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (w *Window) Present() {
	w.window.SwapBuffers()
}

// Release deletes the quad and destroys the window.
func (w *Window) Release() {
	if w.window == nil {
		return
	}
	w.window.MakeContextCurrent()
	gl.BindVertexArray(0)
	gl.DeleteVertexArrays(1, &w.quadVAO)
	gl.DeleteBuffers(1, &w.vbo)
	w.resize = map[int]func(int, int){}
	w.pointer = map[int]func(float32, float32){}
	w.window.Destroy()
	w.window = nil
}

// Window returns the underlying *glfw.Window.
func (w *Window) Window() *glfw.Window {
	return w.window
}
