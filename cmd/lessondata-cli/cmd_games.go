package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/yitongOE/LessonData/internal/games"
)

type gamesCmd struct {
	rt *runtime

	review bool
}

func newGamesCmd(rt *runtime) *gamesCmd {
	return &gamesCmd{rt: rt}
}

func (cmd *gamesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "games",
		Usage:     "列出游戏",
		UsageText: "lessondata-cli games [--review]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "review",
				Usage:       "列出评审面板（games/）而不是 marketplace",
				Destination: &cmd.review,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *gamesCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.review {
		return cmd.listReview(ctx)
	}
	market, err := cmd.rt.Marketplace()
	if err != nil {
		return err
	}
	list, err := market.ListGames(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "没有找到 marketplace 游戏")
		return nil
	}
	tb := newTable("key", "title", "version", "active", "rounds", "layout", "updatedAt", "updatedBy")
	for _, g := range list {
		tb.Append(g.Key, g.Title, g.Version, strconv.FormatBool(g.Active), strconv.Itoa(g.Rounds),
			g.Layout.String(), g.UpdatedAt, g.UpdatedBy)
	}
	return tb.Render(os.Stdout)
}

func (cmd *gamesCmd) listReview(ctx context.Context) error {
	blobs, err := cmd.rt.Blobs()
	if err != nil {
		return err
	}
	list, err := games.NewRepository(blobs).List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "没有找到评审游戏")
		return nil
	}
	tb := newTable("key", "title", "version", "active", "eduLevel", "content", "updatedAt")
	for _, g := range list {
		first := ""
		if len(g.Content) > 0 {
			first = g.Content[0].Value
		}
		tb.Append(g.Key, g.Title, g.Version, strconv.FormatBool(g.Active), strconv.Itoa(g.EduLevel),
			truncate(first, 40), g.UpdatedAt)
	}
	return tb.Render(os.Stdout)
}
