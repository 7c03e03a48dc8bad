package main

import "github.com/universal-field-robots/rmf-task/services/estimator/cli"

func main() {
	cli.Execute()
}
