package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI 把 Migrator 的操作包装成 wikichat migrate 子命令的文本输出。
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI 默认输出到 stdout。
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput 替换输出目标，测试里用 bytes.Buffer 捕获。
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.output, format, args...)
}

// step 执行一次变更并在完成后打印当前版本。
func (c *CLI) step(ctx context.Context, banner, failure, done string, op func(context.Context) error) error {
	c.printf("%s\n", banner)
	if err := op(ctx); err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	c.printf("%s Current version: %d\n", done, info.CurrentVersion)
	return nil
}

// RunUp 应用全部待执行的迁移（documents 表及其索引）。
func (c *CLI) RunUp(ctx context.Context) error {
	return c.step(ctx, "Applying pending document store migrations...",
		"migration failed", "Migrations complete.", c.migrator.Up)
}

// RunDown 回滚最近一次迁移。
func (c *CLI) RunDown(ctx context.Context) error {
	return c.step(ctx, "Rolling back the latest migration...",
		"rollback failed", "Rollback complete.", c.migrator.Down)
}

// RunDownAll 回滚全部迁移，documents 表会被删除。
func (c *CLI) RunDownAll(ctx context.Context) error {
	c.printf("Rolling back all migrations (the documents table will be dropped)...\n")
	if err := c.migrator.DownAll(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	c.printf("All migrations rolled back.\n")
	return nil
}

// RunReset 等价于 down --all 之后再 up。
func (c *CLI) RunReset(ctx context.Context) error {
	if err := c.RunDownAll(ctx); err != nil {
		return err
	}
	return c.RunUp(ctx)
}

// RunSteps n 为正数时前进，负数时回滚。
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	banner := fmt.Sprintf("Applying %d migration(s)...", n)
	if n < 0 {
		banner = fmt.Sprintf("Rolling back %d migration(s)...", -n)
	}
	return c.step(ctx, banner, "migration steps failed", "Complete.",
		func(ctx context.Context) error { return c.migrator.Steps(ctx, n) })
}

func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.step(ctx, fmt.Sprintf("Migrating to version %d...", version),
		"migration failed", "Migration complete.",
		func(ctx context.Context) error { return c.migrator.Goto(ctx, version) })
}

// RunForce 只改写版本记录，不执行 SQL；用于清理 dirty 状态。
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	c.printf("Version forced to %d\n", version)
	return nil
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	switch {
	case version == 0:
		c.printf("No migrations applied yet.\n")
	case dirty:
		c.printf("Current version: %d (dirty, run `wikichat migrate force %d` after fixing the schema)\n", version, version)
	default:
		c.printf("Current version: %d\n", version)
	}
	return nil
}

func statusLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "Dirty"
	case s.Applied:
		return "Applied"
	default:
		return "Pending"
	}
}

// RunStatus 按版本列出每个迁移及其状态，最后打印汇总。
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		c.printf("No migrations found.\n")
		return nil
	}

	tw := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	c.printf("\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get info: %w", err)
	}

	tw := tabwriter.NewWriter(c.output, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "Document store schema:")
	fmt.Fprintf(tw, "  Current Version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(tw, "  Dirty:\t%t\n", info.Dirty)
	fmt.Fprintf(tw, "  Total Migrations:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(tw, "  Applied Migrations:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(tw, "  Pending Migrations:\t%d\n", info.PendingMigrations)
	return tw.Flush()
}
