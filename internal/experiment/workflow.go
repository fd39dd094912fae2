package experiment

import (
	"errors"
	"fmt"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
)

// ErrIncompatible marks a recipe and model that cannot form a workflow.
var ErrIncompatible = errors.New("incompatible recipe and model")

// Workflow pairs a preprocessing recipe with a model.
type Workflow struct {
	ID     string
	Recipe preprocessing.RecipeKind
	Model  models.Kind
}

// Rejection records a recipe and model pair that was never built.
type Rejection struct {
	ID     string
	Reason string
}

func workflowID(recipe preprocessing.RecipeKind, model models.Kind) string {
	return recipe.String() + "_" + model.String()
}

// NewWorkflow pairs recipe and model, refusing to pair a model that cannot
// handle missing values with a recipe that leaves them in place.
func NewWorkflow(recipe preprocessing.RecipeKind, spec models.Spec) (Workflow, error) {
	id := workflowID(recipe, spec.Kind)
	if !spec.NARobust && !recipe.ImputesMissing() {
		return Workflow{}, fmt.Errorf("%s: %s requires imputed data: %w", id, spec.ID, ErrIncompatible)
	}
	return Workflow{ID: id, Recipe: recipe, Model: spec.Kind}, nil
}

// BuildWorkflows returns every compatible recipe and model pair, recipe
// major, and a rejection for every incompatible one.
func BuildWorkflows(recipes []preprocessing.RecipeKind, specs []models.Spec) ([]Workflow, []Rejection) {
	var workflows []Workflow
	var rejections []Rejection
	for _, recipe := range recipes {
		for _, spec := range specs {
			wf, err := NewWorkflow(recipe, spec)
			if err != nil {
				rejections = append(rejections, Rejection{
					ID:     workflowID(recipe, spec.Kind),
					Reason: fmt.Sprintf("%s cannot fit on missing values; use a recipe that imputes", spec.Name),
				})
				continue
			}
			workflows = append(workflows, wf)
		}
	}
	return workflows, rejections
}

type modelFactory func(kind models.Kind, cfg models.Config, seed int64) (models.Model, error)

// FitResult is a recipe and model fitted on one training table.
type FitResult struct {
	Workflow Workflow
	Prepared preprocessing.Prepared
	Model    models.Model
	Features []string
}

// Fit estimates the recipe on train, bakes it and fits the model on the
// baked design.
func (w Workflow) Fit(train *data.Table, cfg models.Config, seed int64) (*FitResult, error) {
	return w.fit(models.New, train, cfg, seed)
}

func (w Workflow) fit(newModel modelFactory, train *data.Table, cfg models.Config, seed int64) (*FitResult, error) {
	recipe, err := preprocessing.NewRecipe(w.Recipe)
	if err != nil {
		return nil, err
	}
	prepared, err := recipe.Fit(train)
	if err != nil {
		return nil, fmt.Errorf("fit %s recipe: %w", w.Recipe, err)
	}
	design, err := prepared.Bake(train)
	if err != nil {
		return nil, fmt.Errorf("bake %s recipe: %w", w.Recipe, err)
	}
	y, err := preprocessing.NewOutcomeEncoder().Transform(design.Labels)
	if err != nil {
		return nil, err
	}

	model, err := newModel(w.Model, cfg, seed)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(design.X, y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", w.Model, err)
	}

	return &FitResult{
		Workflow: w,
		Prepared: prepared,
		Model:    model,
		Features: design.Features,
	}, nil
}

// Predict bakes t with the fitted recipe and returns outcome labels.
func (f *FitResult) Predict(t *data.Table) ([]string, error) {
	design, err := f.Prepared.Bake(t)
	if err != nil {
		return nil, fmt.Errorf("bake %s recipe: %w", f.Workflow.Recipe, err)
	}
	return preprocessing.NewOutcomeEncoder().InverseTransform(f.Model.Predict(design.X))
}
