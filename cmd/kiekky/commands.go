// cmd/kiekky/commands.go

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/auth"
	"github.com/imadgeboyega/kiekky-client/internal/comments"
	"github.com/imadgeboyega/kiekky-client/internal/detail"
	"github.com/imadgeboyega/kiekky-client/internal/media"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
	"github.com/imadgeboyega/kiekky-client/internal/profile"
	"github.com/imadgeboyega/kiekky-client/internal/realtime"
)

var errUsage = errors.New("usage")

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":   cmdLogin,
	"logout":  cmdLogout,
	"whoami":  cmdWhoami,
	"feed":    cmdFeed,
	"show":    cmdShow,
	"like":    cmdLike,
	"comment": cmdComment,
	"reply":   cmdReply,
	"edit":    cmdEdit,
	"delete":  cmdDelete,
	"create":  cmdCreate,
	"profile": cmdProfile,
	"follow":  cmdFollow,
	"watch":   cmdWatch,
	"metrics": cmdMetrics,

	"account":        cmdAccount,
	"delete-account": cmdDeleteAccount,
}

// Kept apart from commands: the command funcs print usage, so one table would be an
// initialization cycle
var usages = map[string]string{
	"login":   "login --clerk-id ID [--email E] [--username U] [--register]",
	"logout":  "logout",
	"whoami":  "whoami",
	"feed":    "feed [--pages N]",
	"show":    "show <post> [--likers]",
	"like":    "like <post>",
	"comment": "comment <post> <text>",
	"reply":   "reply <post> <comment> <text>",
	"edit":    "edit <post> [--caption C] [--location L]",
	"delete":  "delete <post> [--yes]",
	"create":  "create --image REF --caption C --tags a,b [--location L] [--embed]",
	"profile": "profile [user] [--refresh] [--saved]",
	"follow":  "follow <user>",
	"watch":   "watch",
	"metrics": "metrics",

	"account":        "account [--email E] [--username U] [--first-name F] [--last-name L] [--image URL]",
	"delete-account": "delete-account [--yes]",
}

var commandOrder = []string{"login", "logout", "whoami", "feed", "show", "like", "comment", "reply", "edit", "delete", "create", "profile", "follow", "account", "delete-account", "watch", "metrics"}

func run(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printUsage()
		return errUsage
	}
	return cmd(ctx, a, args[1:])
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: kiekky <command> [flags]")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %s\n", usages[name])
	}
}

// parse parses flags and requires at least n positional arguments
func parse(fs *pflag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() < n {
		fmt.Fprintf(os.Stderr, "usage: kiekky %s\n", usages[fs.Name()])
		return nil, errUsage
	}
	return fs.Args(), nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	identity := &auth.IdentityUser{}
	fs.StringVar(&identity.ID, "clerk-id", "", "identity provider user id")
	fs.StringVar(&identity.Email, "email", "", "email address")
	fs.StringVar(&identity.Username, "username", "", "username")
	fs.StringVar(&identity.FirstName, "first-name", "", "first name")
	fs.StringVar(&identity.LastName, "last-name", "", "last name")
	fs.StringVar(&identity.ImageURL, "image-url", "", "avatar URL")
	register := fs.Bool("register", false, "create the backend user first")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if *register {
		if _, err := a.session.CreateUser(ctx, &auth.NewUser{
			ClerkID:   identity.ID,
			Email:     identity.Email,
			Username:  identity.Username,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			ImageURL:  identity.ImageURL,
		}); err != nil {
			return err
		}
	}

	session, err := a.session.InitializeSession(ctx, identity)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", session.UserID)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	user, err := a.session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", user.Username, user.ID)
	if user.Email != "" {
		fmt.Printf("  email: %s\n", user.Email)
	}
	fmt.Printf("  followers: %d  following: %d\n", len(user.Followers), len(user.Following))
	return nil
}

func cmdFeed(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("feed", pflag.ContinueOnError)
	pages := fs.Int("pages", 1, "number of pages to load")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if err := a.feed.Refresh(ctx); err != nil {
		return err
	}
	for i := 1; i < *pages; i++ {
		if !a.feed.State().HasMore {
			break
		}
		if err := a.feed.LoadMore(ctx); err != nil {
			return err
		}
	}

	state := a.feed.State()
	ids := make([]string, 0, len(state.Posts))
	for _, p := range state.Posts {
		ids = append(ids, p.Author)
	}
	a.authors.Prefetch(ctx, ids...)

	for _, p := range state.Posts {
		printPostLine(ctx, a, p)
	}
	fmt.Printf("-- %d of %d posts", len(state.Posts), state.Total)
	if state.HasMore {
		fmt.Printf(", more with --pages %d", state.Page+1)
	}
	fmt.Println()
	return nil
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	likers := fs.Bool("likers", false, "list who liked the post")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	view, err := a.openView(ctx, rest[0])
	if err != nil {
		return err
	}
	defer view.Close()
	if err := view.Wait(ctx); err != nil {
		return err
	}

	printDetail(a, view)

	if *likers {
		list, err := view.Likers(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Liked by:")
		for _, l := range list {
			fmt.Printf("  %s %s\n", l.Initial(), l.Name)
		}
	}
	return nil
}

func cmdLike(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("like", pflag.ContinueOnError)
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	view, err := a.openView(ctx, rest[0])
	if err != nil {
		return err
	}
	defer view.Close()
	if err := view.Wait(ctx); err != nil {
		return err
	}

	liked, err := view.ToggleLike(ctx)
	if err != nil {
		return err
	}
	verb := "Unliked"
	if liked {
		verb = "Liked"
	}
	if post, ok := view.Post(); ok {
		fmt.Printf("%s (%d likes)\n", verb, post.LikesCount())
	} else {
		fmt.Println(verb)
	}
	return nil
}

func cmdComment(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("comment", pflag.ContinueOnError)
	rest, err := parse(fs, args, 2)
	if err != nil {
		return err
	}
	return submitComment(ctx, a, rest[0], "", strings.Join(rest[1:], " "))
}

func cmdReply(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("reply", pflag.ContinueOnError)
	rest, err := parse(fs, args, 3)
	if err != nil {
		return err
	}
	return submitComment(ctx, a, rest[0], rest[1], strings.Join(rest[2:], " "))
}

func submitComment(ctx context.Context, a *app, postID, parentID, text string) error {
	view, err := a.openView(ctx, postID)
	if err != nil {
		return err
	}
	defer view.Close()
	if err := view.Wait(ctx); err != nil {
		return err
	}

	composer := view.Composer()
	if parentID != "" {
		if err := composer.StartReply(parentID); err != nil {
			return fmt.Errorf("cannot reply to %s: %w", parentID, err)
		}
	}
	composer.SetText(text)
	if _, err := composer.Submit(ctx); err != nil {
		return err
	}

	printComments(view.Tree())
	return nil
}

func cmdEdit(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	caption := fs.String("caption", "", "new caption")
	location := fs.String("location", "", "new location")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	view, err := a.openView(ctx, rest[0])
	if err != nil {
		return err
	}
	defer view.Close()
	if err := view.Wait(ctx); err != nil {
		return err
	}

	post, err := view.Edit(ctx, *caption, *location)
	if err != nil {
		return err
	}
	fmt.Printf("Updated: %s\n", post.Content)
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}

	view, err := a.openView(ctx, rest[0])
	if err != nil {
		return err
	}
	defer view.Close()
	if err := view.Wait(ctx); err != nil {
		return err
	}

	var confirm detail.Confirmer = detail.ConfirmFunc(promptConfirm)
	if *yes {
		confirm = detail.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	}

	err = view.Delete(ctx, confirm)
	if detail.IsDeclined(err) {
		fmt.Println("Cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	if err := a.cache.Invalidate(ctx, view.AuthorID()); err != nil {
		a.logger.Debug("Failed to invalidate posts cache", zap.Error(err))
	}
	fmt.Println("Post deleted")
	return nil
}

func cmdCreate(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	in := &posts.CreatePostInput{}
	fs.StringVar(&in.Image, "image", "", "image path, URL, s3://bucket/key or data URI")
	fs.StringVar(&in.Caption, "caption", "", "caption")
	fs.StringSliceVar(&in.Tags, "tags", nil, "comma separated tags")
	fs.StringVar(&in.Location, "location", "", "location")
	fs.StringVar(&in.Filters, "filters", "", "filter name")
	embed := fs.Bool("embed", false, "send the image as a data URI")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	a.posts.EmbedImages = *embed
	post, err := a.posts.CreatePost(ctx, in)
	if err != nil {
		return err
	}
	if err := a.cache.Invalidate(ctx, post.Author); err != nil {
		a.logger.Debug("Failed to invalidate posts cache", zap.Error(err))
	}
	fmt.Printf("Created post %s\n", post.ID)
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("profile", pflag.ContinueOnError)
	refresh := fs.Bool("refresh", false, "bypass the local posts cache")
	saved := fs.Bool("saved", false, "list saved posts")
	rest, err := parse(fs, args, 0)
	if err != nil {
		return err
	}
	userID := ""
	if len(rest) > 0 {
		userID = rest[0]
	}

	overview, err := a.profiles.Overview(ctx, userID, *refresh)
	if err != nil {
		return err
	}
	printProfile(a, overview)

	if *saved {
		list, err := a.profiles.SavedPosts(ctx, overview.Profile.ID)
		if err != nil {
			return err
		}
		fmt.Println("Saved:")
		for _, p := range list {
			printPostLine(ctx, a, p)
		}
	}
	return nil
}

func cmdAccount(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("account", pflag.ContinueOnError)
	req := &profile.IdentityUpdate{}
	fs.StringVar(&req.Email, "email", "", "new email")
	fs.StringVar(&req.Username, "username", "", "new username")
	fs.StringVar(&req.FirstName, "first-name", "", "new first name")
	fs.StringVar(&req.LastName, "last-name", "", "new last name")
	fs.StringVar(&req.ImageURL, "image", "", "new avatar URL")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if err := a.profiles.UpdateIdentity(ctx, req); err != nil {
		return err
	}
	fmt.Println("Account updated")
	return nil
}

func cmdDeleteAccount(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("delete-account", pflag.ContinueOnError)
	yes := fs.BoolP("yes", "y", false, "do not ask for confirmation")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	if !*yes {
		ok, err := promptConfirm(ctx, "Delete your account and all of your posts? This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled")
			return nil
		}
	}

	if err := a.profiles.DeleteAccount(ctx); err != nil {
		return err
	}
	if err := a.session.SignOut(ctx); err != nil {
		a.logger.Warn("Failed to clear session", zap.Error(err))
	}
	fmt.Println("Account deleted")
	return nil
}

func cmdFollow(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("follow", pflag.ContinueOnError)
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	following, err := a.profiles.ToggleFollow(ctx, rest[0])
	if err != nil {
		return err
	}
	if following {
		fmt.Println("Following")
	} else {
		fmt.Println("Unfollowed")
	}
	return nil
}

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if err := a.feed.Refresh(ctx); err != nil {
		return err
	}

	unsubscribe := a.store.Subscribe(func(c posts.Change) {
		switch c.Kind {
		case posts.ChangeRemoved:
			fmt.Printf("[%s] post %s deleted\n", time.Now().Format(time.Kitchen), c.PostID)
		case posts.ChangeUpdated:
			if p, ok := a.store.Get(c.PostID); ok {
				fmt.Printf("[%s] post %s: %d likes, %d comments\n",
					time.Now().Format(time.Kitchen), c.PostID, p.LikesCount(), len(p.Comments))
			}
		}
	})
	defer unsubscribe()

	janitor := posts.NewCacheJanitor(a.cache, a.cfg.CacheSweepInterval, a.logger.Named("janitor"))
	go janitor.Start(ctx)

	client := realtime.NewClient(a.cfg.RealtimeURL, a.secure, a.events, a.logger.Named("realtime"))
	fmt.Println("Watching for live updates, Ctrl-C to stop")
	return client.Run(ctx)
}

func cmdMetrics(_ context.Context, _ *app, _ []string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

// promptConfirm reads y/N from the terminal
func promptConfirm(_ context.Context, prompt string) (bool, error) {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func printPostLine(ctx context.Context, a *app, p *posts.Post) {
	author := a.authors.Resolve(ctx, p.Author)
	heart := " "
	if p.IsLiked {
		heart = "*"
	}
	fmt.Printf("%s %s  %-16s %3d likes %3d comments  %s\n",
		heart, p.ID, author.Name, p.LikesCount(), len(p.Comments), oneLine(p.Content))
}

func printDetail(a *app, view *detail.View) {
	post, ok := view.Post()
	if !ok {
		fmt.Println("This post is no longer available.")
		return
	}
	author := view.Author()
	fmt.Printf("[%s] %s\n", author.Initial(), author.Name)
	if author.AvatarURL != "" {
		fmt.Printf("  avatar: %s\n", media.FormatImageURI(author.AvatarURL, a.cfg.DevHost()))
	}
	fmt.Printf("  image: %s\n", media.FormatImageURI(post.Image, a.cfg.DevHost()))
	fmt.Printf("  %s\n", post.Content)
	if post.Location != "" {
		fmt.Printf("  at %s\n", post.Location)
	}
	if len(post.Tags) > 0 {
		fmt.Printf("  #%s\n", strings.Join(post.Tags, " #"))
	}
	liked := ""
	if post.IsLiked {
		liked = " (you liked this)"
	}
	fmt.Printf("  %d likes%s, %s\n", post.LikesCount(), liked, post.CreatedAt.Format(time.RFC822))

	actions := view.Actions()
	names := make([]string, len(actions))
	for i, act := range actions {
		names[i] = string(act)
	}
	fmt.Printf("  actions: %s\n", strings.Join(names, ", "))

	printComments(view.Tree())
}

func printComments(tree *comments.Tree) {
	rows := tree.Rows()
	if len(rows) == 0 {
		fmt.Println("  No comments yet")
		return
	}
	fmt.Println("  Comments:")
	for _, row := range rows {
		name := row.Comment.Author.Username
		if name == "" {
			name = row.Comment.Author.ID
		}
		fmt.Printf("  %s%s %s: %s\n", strings.Repeat("  ", row.Depth+1), row.Comment.ID, name, oneLine(row.Comment.Content))
	}
}

func printProfile(a *app, o *profile.Overview) {
	p := o.Profile
	fmt.Printf("%s (@%s)\n", p.DisplayName(), p.Username)
	if avatar := p.Avatar(); avatar != "" {
		fmt.Printf("  avatar: %s\n", media.FormatImageURI(avatar, a.cfg.DevHost()))
	}
	if p.Bio != "" {
		fmt.Printf("  %s\n", p.Bio)
	}
	fmt.Printf("  %d posts  %d followers  %d following\n", len(o.Posts), len(p.Followers), len(p.Following))
	if o.Completion.Percentage < 100 {
		fmt.Printf("  profile %d%% complete, missing: %s\n",
			o.Completion.Percentage, strings.Join(o.Completion.Missing, ", "))
	}
	source := "backend"
	if o.FromCache {
		source = "cache"
	}
	fmt.Printf("  posts (from %s):\n", source)
	for _, post := range o.Posts {
		fmt.Printf("    %s  %3d likes  %s\n", post.ID, post.LikesCount(), oneLine(post.Content))
	}
}

func oneLine(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return string(r)
}
