package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/yitongOE/LessonData/internal/auth"
	"github.com/yitongOE/LessonData/internal/marketplace"
)

type previewCmd struct {
	rt *runtime

	round int
}

func newPreviewCmd(rt *runtime) *previewCmd {
	return &previewCmd{rt: rt}
}

func (cmd *previewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "preview",
		Usage:     "以只读方式打开一个 marketplace 游戏，输出字段与各轮预览",
		UsageText: "lessondata-cli preview <game> [--round N]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "round",
				Usage:       "只输出指定轮次；0 表示全部",
				Destination: &cmd.round,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *previewCmd) run(ctx context.Context, c *cli.Command) error {
	key := c.Args().First()
	if err := marketplace.ValidateGameKey(key); err != nil {
		return err
	}
	mgr, err := cmd.rt.Editor()
	if err != nil {
		return err
	}
	sess, err := mgr.Open(ctx, key, string(auth.ActorTypeCLI), true)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Cancel(sess.ID()) }()

	vm, err := sess.View()
	if err != nil {
		return err
	}

	fields := newTable("field", "label", "value", "readonly")
	for _, f := range vm.Fields {
		fields.Append(f.Key, f.Label, truncate(f.Value.String(), 40), strconv.FormatBool(f.ReadOnly))
	}
	fmt.Fprintf(os.Stdout, "%s（%s，%s）\n", vm.Title, vm.GameKey, vm.Layout)
	if err := fields.Render(os.Stdout); err != nil {
		return err
	}

	shown := false
	for _, r := range vm.Rounds {
		if cmd.round > 0 && r.Round != cmd.round {
			continue
		}
		shown = true
		fmt.Fprintf(os.Stdout, "\n第 %d 轮\n%s\n", r.Round, r.Preview)
	}
	if cmd.round > 0 && !shown {
		return errors.New("轮次超出范围")
	}

	for _, b := range vm.Content {
		fmt.Fprintf(os.Stdout, "\n[%s]\n", b.Label)
		rows := newTable("level", "value")
		for _, r := range b.Rows {
			rows.Append(strconv.Itoa(r.Level), truncate(r.Value, 80))
		}
		if err := rows.Render(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}
