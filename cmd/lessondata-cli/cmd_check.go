package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/cheggaaa/pb/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/yitongOE/LessonData/internal/admins"
	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/games"
)

type checkCmd struct {
	rt *runtime
}

func newCheckCmd(rt *runtime) *checkCmd {
	return &checkCmd{rt: rt}
}

func (cmd *checkCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "check",
		Usage:     "逐个加载全部游戏与账号表，报告无法解析的数据",
		UsageText: "lessondata-cli check",
		Description: `marketplace 游戏按编辑会话的方式完整加载一次（配置、规则、内容、选择）；
评审面板游戏与 AdminData.csv 也会被解析与校验。发现问题时以非零状态退出。`,
		Action: cmd.run,
	})
	return app
}

type problem struct {
	target string
	err    error
}

func (cmd *checkCmd) run(ctx context.Context, c *cli.Command) error {
	market, err := cmd.rt.Marketplace()
	if err != nil {
		return err
	}
	blobs, err := cmd.rt.Blobs()
	if err != nil {
		return err
	}
	mgr, err := cmd.rt.Editor()
	if err != nil {
		return err
	}

	keys, err := market.GameKeys(ctx)
	if err != nil {
		return err
	}
	reviewPaths, err := blobs.List(ctx, "games/*/config.csv")
	if err != nil {
		return err
	}

	bar := pb.StartNew(len(keys) + len(reviewPaths) + 1)
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		bar.SetWriter(io.Discard)
	}

	var problems []problem
	for _, key := range keys {
		target := path.Join("marketplace", key)
		sess, err := mgr.Open(ctx, key, string(auth.ActorTypeCLI), true)
		if err != nil {
			problems = append(problems, problem{target, err})
		} else {
			_ = mgr.Cancel(sess.ID())
		}
		bar.Increment()
	}

	review := games.NewRepository(blobs)
	for _, p := range reviewPaths {
		key := path.Base(path.Dir(p))
		if _, err := review.Load(ctx, key); err != nil {
			problems = append(problems, problem{path.Join("games", key), err})
		}
		bar.Increment()
	}

	accounts, err := admins.NewRepository(blobs).List(ctx)
	if err == nil {
		err = admins.Validate(accounts)
	}
	if err != nil {
		problems = append(problems, problem{admins.Path, err})
	}
	bar.Increment()
	bar.Finish()

	if len(problems) == 0 {
		fmt.Fprintf(os.Stdout, "检查通过：marketplace %d 个，评审面板 %d 个，账号 %d 个\n",
			len(keys), len(reviewPaths), len(accounts))
		return nil
	}
	tb := newTable("target", "error")
	for _, p := range problems {
		tb.Append(p.target, truncate(p.err.Error(), 100))
	}
	if err := tb.Render(os.Stdout); err != nil {
		return err
	}
	return fmt.Errorf("发现 %d 个问题", len(problems))
}
