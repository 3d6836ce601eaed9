package main

import (
	"context"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/lowc/compiler"
	"github.com/slowlang/lowc/compiler/config"
	"github.com/slowlang/lowc/compiler/format"
	"github.com/slowlang/lowc/compiler/session"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile ast files into nasm assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: append(configFlags(),
			cli.NewFlag("output,o", "", "output file, stdout if empty, <file>.asm for several inputs"),
			cli.NewFlag("debug", false, "write ir next to the source"),
			cli.NewFlag("ir-file", "", "ir dump file"),
		),
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print lowered ir",
		Action:      irAct,
		Args:        cli.Args{},
		Flags:       configFlags(),
	}

	layoutCmd := &cli.Command{
		Name:        "layout",
		Description: "print struct layouts",
		Action:      layoutAct,
		Args:        cli.Args{},
		Flags:       configFlags(),
	}

	app := &cli.Command{
		Name:        "lowc",
		Description: "lowc lowers ast into ir and x86-64 assembly",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			irCmd,
			layoutCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func configFlags() []*cli.Flag {
	return []*cli.Flag{
		cli.NewFlag("config,c", "", "config file"),
		cli.NewFlag("bits", 0, "target pointer bits: 32 or 64"),
		cli.NewFlag("fat-strings", false, "strings carry their length"),
		cli.NewFlag("entry", "", "entry function name"),
	}
}

func before(c *cli.Command) error {
	if v := c.String("verbosity"); v != "" {
		tlog.SetVerbosity(v)
	}

	return nil
}

func loadConfig(c *cli.Command) (cfg config.Config, err error) {
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if v := c.Int("bits"); v != 0 {
		cfg.Bits = v
	}

	if c.Bool("fat-strings") {
		cfg.FatStrings = true
	}

	if v := c.String("entry"); v != "" {
		cfg.Entry = v
	}

	return cfg, cfg.Validate()
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	if c.Bool("debug") {
		cfg.Debug = true
	}

	if v := c.String("ir-file"); v != "" {
		cfg.IRFile = v
	}

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, cfg, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out := c.String("output")

		switch {
		case out == "" && len(c.Args) == 1:
			_, err = os.Stdout.Write(obj)
		case out == "":
			err = os.WriteFile(a+".asm", obj, 0o644)
		default:
			err = os.WriteFile(out, obj, 0o644)
		}

		if err != nil {
			return errors.Wrap(err, "write %v", a)
		}
	}

	return nil
}

func irAct(c *cli.Command) (err error) {
	return dump(c, func(ctx context.Context, b []byte, s *session.Session, name string, text []byte) ([]byte, error) {
		m, err := compiler.Lower(ctx, s, name, text)
		if err != nil {
			return nil, err
		}

		return format.Format(ctx, b, m)
	})
}

func layoutAct(c *cli.Command) (err error) {
	return dump(c, func(ctx context.Context, b []byte, s *session.Session, name string, text []byte) ([]byte, error) {
		m, err := compiler.Lower(ctx, s, name, text)
		if err != nil {
			return nil, err
		}

		for _, x := range m.Structs {
			b, err = format.Format(ctx, b, x)
			if err != nil {
				return nil, errors.Wrap(err, "struct %v", x.Name)
			}
		}

		return b, nil
	})
}

func dump(c *cli.Command, f func(ctx context.Context, b []byte, s *session.Session, name string, text []byte) ([]byte, error)) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	var b []byte

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		s, err := session.New(cfg)
		if err != nil {
			return err
		}

		b, err = f(ctx, b[:0], s, a, text)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return err
		}
	}

	return nil
}
