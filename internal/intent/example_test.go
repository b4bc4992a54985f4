package intent_test

import (
	"context"
	"fmt"

	"github.com/normanking/conductor/internal/intent"
)

func ExampleClassifier_Classify() {
	c := intent.NewClassifier()

	res := c.Classify(context.Background(), "Necesito crear un dashboard de ventas con datos de los últimos 6 meses", "", nil)
	title, _ := res.ExtractedEntities.Get("task_title")
	timeframe, _ := res.ExtractedEntities.Get("timeframe")

	fmt.Println(res.Category, res.Confidence)
	fmt.Println(title)
	fmt.Println(timeframe)
	// Output:
	// complex_task 0.6
	// Crear un dashboard de ventas con datos de los últimos 6 meses
	// últimos 6 meses
}

func ExampleHeuristicClassifier_Classify() {
	h := intent.NewHeuristicClassifier()
	for _, msg := range []string{"hola", "¿Qué es un KPI?", "pausa la tarea"} {
		res := h.Classify(msg)
		fmt.Printf("%s %.1f\n", res.Category, res.Confidence)
	}
	// Output:
	// casual_conversation 0.8
	// information_request 0.7
	// task_management 0.7
}
