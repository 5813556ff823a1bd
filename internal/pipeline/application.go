package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/alexisbeaulieu97/avalon/internal/config"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/template"
	"github.com/alexisbeaulieu97/avalon/internal/workfile"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// LaunchRequest describes one application process.
type LaunchRequest struct {
	Executable string
	Args       []string
	Env        map[string]string
	Dir        string
}

// Launcher starts application processes.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (any, error)
}

// ExecLauncher starts processes with os/exec. The request environment is
// layered over the current process environment. The started *exec.Cmd is
// returned; the process is not waited for.
type ExecLauncher struct{}

func (ExecLauncher) Launch(_ context.Context, req LaunchRequest) (any, error) {
	executable, err := exec.LookPath(req.Executable)
	if err != nil {
		return nil, fmt.Errorf("'%s' not found on your PATH\n%s", req.Executable, os.Getenv("PATH"))
	}

	cmd := exec.Command(executable, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(req.Env))
	for key := range req.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		cmd.Env = append(cmd.Env, key+"="+req.Env[key])
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", executable, err)
	}
	return cmd, nil
}

// Application is the action launching an application definition inside
// the current work area.
type Application struct {
	ctx *Context
	app *config.Application
}

// NewApplication wraps app as an action of c.
func NewApplication(c *Context, app *config.Application) *Application {
	return &Application{ctx: c, app: app}
}

// RegisterApplications registers an Application action per definition.
func (c *Context) RegisterApplications(apps []*config.Application) error {
	for _, app := range apps {
		if err := c.registry.RegisterPlugin(api.KindAction, NewApplication(c, app)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) PluginMetadata() api.Metadata {
	return api.Metadata{
		Name:  a.app.Name,
		Kind:  api.KindAction,
		Label: a.app.Label,
	}
}

// IsCompatible requires a project, an asset and a task.
func (a *Application) IsCompatible(sess map[string]string) bool {
	var missing []string
	for _, key := range []string{session.Project, session.Asset, session.Task} {
		if _, ok := sess[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		a.ctx.log.With("missing", missing).Debug("application not compatible with session")
		return false
	}
	return true
}

// Environ builds the environment the application is launched with: the
// definition's environment overlaid by the session, the application keys,
// the work directory and the last workfile.
func (a *Application) Environ(ctx context.Context, sess map[string]string) (map[string]string, error) {
	extra := make([]string, 0, len(sess))
	for key := range sess {
		extra = append(extra, key)
	}
	sort.Strings(extra)
	s := session.FromMap(sess, extra...)

	hostName := a.app.ApplicationDir
	_ = s.Set(session.App, hostName)
	_ = s.Set(session.AppName, a.app.Name)

	workdir, err := a.ctx.workdir(ctx, s)
	if err != nil {
		return nil, err
	}
	if workdir != "" {
		_ = s.Set(session.Workdir, workdir)
	}
	workdir = s.Value(session.Workdir)

	lastWorkfile := ""
	if extensions := workfile.ExtensionsFor(hostName); len(extensions) > 0 && workdir != "" {
		lastWorkfile, err = a.ctx.LastWorkfile(ctx, s, extensions)
		if err != nil {
			a.ctx.log.With("application", a.app.Name).WarnErr(err, "failed to compute last workfile")
		}
	}

	start := a.ctx.workfiles.ShouldStartLast(ctx, s.Value(session.Project), hostName, s.Value(session.Task))
	if start {
		_ = s.Set(session.OpenLastWorkfile, "1")
	} else {
		_ = s.Set(session.OpenLastWorkfile, "0")
	}
	if start && lastWorkfile != "" && exists(lastWorkfile) {
		_ = s.Set(session.LastWorkfile, lastWorkfile)
	}

	env := make(map[string]string, len(a.app.Environment)+len(s.Keys()))
	for key, value := range a.app.Environment {
		env[key] = value
	}
	for key, value := range s.Snapshot() {
		env[key] = value
	}
	return env, nil
}

// LastWorkfile returns the newest work file in the session's work
// directory matching the project's workfile template, or the name version 1
// would get when none exists yet. It returns "" when the project has no
// workfile template.
func (c *Context) LastWorkfile(ctx context.Context, s *session.Session, extensions []string) (string, error) {
	workdir := s.Value(session.Workdir)
	if workdir == "" || len(extensions) == 0 {
		return "", nil
	}
	project, err := c.Project(ctx, s)
	if err != nil {
		return "", err
	}
	fileTemplate := project.StringAt("config", "template", "workfile")
	if fileTemplate == "" {
		return "", nil
	}

	data, err := c.TemplateDataFromSession(ctx, s)
	if err != nil {
		return "", err
	}
	data["version"] = 1
	data["ext"] = extensions[0]

	return workfile.Last(workdir, fileTemplate, data, extensions, true)
}

// Initialize creates the work directory. A new work directory also gets the
// definition's default directories. Configured copies always run; a failed
// copy is logged.
func (a *Application) Initialize(env map[string]string) error {
	workdir := env[session.Workdir]
	if workdir == "" {
		return avalonerrors.NewEnvironmentError("cannot initialize application", session.Workdir)
	}
	log := a.ctx.log.With("application", a.app.Name)

	data := make(map[string]any, len(env))
	for key, value := range env {
		data[key] = value
	}

	if !exists(workdir) {
		log.With("workdir", workdir).Info("Creating working directory")
		if err := os.MkdirAll(workdir, 0o755); err != nil {
			return fmt.Errorf("create working directory: %w", err)
		}

		for _, dir := range a.app.DefaultDirs {
			name, err := template.Format(dir, data)
			if err != nil {
				log.Error(err, "default directory references a variable missing from the session")
				continue
			}
			if err := os.MkdirAll(filepath.Join(workdir, name), 0o755); err != nil {
				return fmt.Errorf("create default directory %s: %w", name, err)
			}
		}
	}

	for src, dst := range a.app.Copy {
		src, srcErr := template.Format(src, data)
		dst, dstErr := template.Format(filepath.Join(workdir, dst), data)
		if srcErr != nil || dstErr != nil {
			log.Error(firstErr(srcErr, dstErr), "copy references a variable missing from the session")
			continue
		}
		log.WithFields(map[string]any{"src": src, "dst": dst}).Info("Copying application file")
		if err := copyFile(src, dst); err != nil {
			log.Error(err, "could not copy application file")
		}
	}
	return nil
}

// Launch starts the application in the work directory.
func (a *Application) Launch(ctx context.Context, env map[string]string) (any, error) {
	return a.ctx.launcher.Launch(ctx, LaunchRequest{
		Executable: a.app.Executable,
		Args:       append([]string(nil), a.app.Args...),
		Env:        env,
		Dir:        env[session.Workdir],
	})
}

// Process runs Environ, then Initialize and Launch unless the options
// "initialize" or "launch" are false.
func (a *Application) Process(ctx context.Context, sess map[string]string, options map[string]any) (any, error) {
	env, err := a.Environ(ctx, sess)
	if err != nil {
		return nil, err
	}
	if enabled(options, "initialize") {
		if err := a.Initialize(env); err != nil {
			return nil, err
		}
	}
	if enabled(options, "launch") {
		return a.Launch(ctx, env)
	}
	return nil, nil
}

func enabled(options map[string]any, key string) bool {
	value, ok := options[key].(bool)
	return !ok || value
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
