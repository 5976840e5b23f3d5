// Package mqstep publishes build step messages to RabbitMQ.
//
// A step's template is resolved by package template, the step itself is run by
// package step, and Client connects the step to a broker profile from package
// config:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	runner := step.NewRunner(cfg, mqstep.Dial, step.WithConsole(os.Stdout))
//	err = runner.Perform(ctx, step.Step{
//		Profile:    "rabbit-prod",
//		Exchange:   "builds",
//		RoutingKey: "build.done",
//		Data:       "job_name=${JOB_NAME}",
//		ToJSON:     true,
//	}, step.Build{Variables: params})
package mqstep
