package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/store"
)

// restorePhrase 是交互式恢复前必须原样输入的确认语。
const restorePhrase = "I am aware"

var errInvalidTarget = errors.New("不支持的目标，应为 marketplace/<Game>、games/<Game> 或 AdminData.csv")

func normalizeTarget(raw string) (string, error) {
	target := strings.Trim(strings.TrimSpace(raw), "/")
	if target == admins.Path {
		return target, nil
	}
	dir, key := path.Split(target)
	switch dir {
	case "marketplace/", "games/":
		if marketplace.ValidateGameKey(key) == nil {
			return target, nil
		}
	}
	return "", errInvalidTarget
}

func cliActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return string(auth.ActorTypeCLI)
}

// recordAudit 写审计失败只告警，不影响命令结果。
func recordAudit(ctx context.Context, rt *runtime, action, target string, opErr error) {
	st, err := rt.Store()
	if err != nil {
		slog.Warn("打开数据库失败，未写审计", "err", err)
		return
	}
	in := store.AuditEventInput{
		ActorType: string(auth.ActorTypeCLI),
		Actor:     cliActor(),
		Action:    action,
		Target:    target,
		Status:    store.AuditStatusOK,
	}
	if opErr != nil {
		in.Status = store.AuditStatusFailed
		detail := opErr.Error()
		in.Detail = &detail
	}
	if err := st.InsertAuditEvent(ctx, in); err != nil {
		slog.Warn("写审计失败", "action", action, "target", target, "err", err)
	}
}

func printSnapshot(res blob.SnapshotResult) {
	fmt.Fprintf(os.Stdout, "%s：%d 个文件", res.Target, len(res.Files))
	if len(res.Removed) > 0 {
		fmt.Fprintf(os.Stdout, "，删除 %s", strings.Join(res.Removed, ", "))
	}
	fmt.Fprintln(os.Stdout)
}

type snapshotCmd struct {
	rt *runtime

	all bool
}

func newSnapshotCmd(rt *runtime) *snapshotCmd {
	return &snapshotCmd{rt: rt}
}

func (cmd *snapshotCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "snapshot",
		Usage:     "把目标的当前内容记为安全版本",
		UsageText: "lessondata-cli snapshot [--all] [target ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "对 AdminData.csv 与全部游戏目录打快照",
				Destination: &cmd.all,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *snapshotCmd) targets(ctx context.Context, c *cli.Command) ([]string, error) {
	if !cmd.all {
		if c.Args().Len() == 0 {
			return nil, errors.New("至少指定一个目标，或使用 --all")
		}
		out := make([]string, 0, c.Args().Len())
		for _, raw := range c.Args().Slice() {
			t, err := normalizeTarget(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", raw, err)
			}
			out = append(out, t)
		}
		return out, nil
	}

	blobs, err := cmd.rt.Blobs()
	if err != nil {
		return nil, err
	}
	out := []string{admins.Path}
	for _, pattern := range []string{"marketplace/*/config.csv", "games/*/config.csv"} {
		matches, err := blobs.List(ctx, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			out = append(out, path.Dir(m))
		}
	}
	return out, nil
}

func (cmd *snapshotCmd) run(ctx context.Context, c *cli.Command) error {
	targets, err := cmd.targets(ctx, c)
	if err != nil {
		return err
	}
	blobs, err := cmd.rt.Blobs()
	if err != nil {
		return err
	}
	var failed int
	for _, t := range targets {
		res, err := blobs.MarkSafe(ctx, t)
		recordAudit(ctx, cmd.rt, store.AuditActionMarkSafe, t, err)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s：%v\n", t, err)
			continue
		}
		printSnapshot(res)
	}
	if failed > 0 {
		return fmt.Errorf("%d 个目标打快照失败", failed)
	}
	return nil
}

type restoreCmd struct {
	rt *runtime

	yes bool
}

func newRestoreCmd(rt *runtime) *restoreCmd {
	return &restoreCmd{rt: rt}
}

func (cmd *restoreCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "restore",
		Usage:     "用安全版本覆盖目标，删除快照中不存在的文件",
		UsageText: "lessondata-cli restore [--yes] <target>",
		Description: `恢复会整体替换目标下的所有 CSV，正在编辑的会话不会自动刷新。
交互终端中需要输入 "I am aware" 确认；非交互环境必须加 --yes。`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Usage:       "跳过确认",
				Destination: &cmd.yes,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *restoreCmd) run(ctx context.Context, c *cli.Command) error {
	target, err := normalizeTarget(c.Args().First())
	if err != nil {
		return err
	}
	blobs, err := cmd.rt.Blobs()
	if err != nil {
		return err
	}
	ok, err := blobs.HasSnapshot(target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", target, blob.ErrNoSnapshot)
	}

	if !cmd.yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("非交互环境下恢复需要 --yes")
		}
		if err := confirmRestore(target); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	}

	res, err := blobs.Restore(ctx, target)
	recordAudit(ctx, cmd.rt, store.AuditActionRestore, target, err)
	if err != nil {
		return err
	}
	printSnapshot(res)
	return nil
}

func confirmRestore(target string) error {
	var typed string
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("恢复 %s", target)).
				Description(fmt.Sprintf("当前内容将被安全版本覆盖。输入 %q 继续", restorePhrase)).
				Validate(func(s string) error {
					if strings.TrimSpace(s) != restorePhrase {
						return fmt.Errorf("请输入 %q", restorePhrase)
					}
					return nil
				}).
				Value(&typed),
		),
	).Run()
}

type auditCmd struct {
	rt *runtime

	limit int
}

func newAuditCmd(rt *runtime) *auditCmd {
	return &auditCmd{rt: rt}
}

func (cmd *auditCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "audit",
		Usage:     "查看最近的审计事件",
		UsageText: "lessondata-cli audit [--limit N]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Value:       20,
				Destination: &cmd.limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			st, err := cmd.rt.Store()
			if err != nil {
				return err
			}
			events, err := st.ListAuditEvents(ctx, cmd.limit)
			if err != nil {
				return err
			}
			tb := newTable("time", "actor", "role", "action", "target", "status")
			for _, e := range events {
				tb.Append(e.Time.Format("2006-01-02 15:04:05"), e.Actor, e.Role, e.Action, e.Target, e.Status)
			}
			return tb.Render(os.Stdout)
		},
	})
	return app
}
