package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	app := kingpin.New("ssr", "Render JavaScript UI components to HTML on the server.")
	app.HelpFlag.Short('h')

	addRenderCommand(app)
	addVersionCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func addVersionCommand(app *kingpin.Application) {
	app.Command("version", "Print version.").Action(func(_ *kingpin.ParseContext) error {
		fmt.Printf("ssr version %s\n", version)
		return nil
	})
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
