package controllers

import (
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/invictusops/invictus/internal/live"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/auth"
	gql "github.com/invictusops/invictus/pkg/graphql"
)

// DashboardSchema exposes the read-only views over GraphQL:
//
//	{ dashboard { counts { reorderCount pendingTasks todaysOrders } myTasks { description } }
//	  inventory(search: "mouse", sort: "quantity", desc: true) { name quantity }
//	  sidebar { reorder backorders } }
func DashboardSchema(cache *live.Cache) (graphql.Schema, error) {
	profile := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"description":    &graphql.Field{Type: graphql.String},
			"hasSetPassword": &graphql.Field{Type: graphql.Boolean},
		},
	})

	item := graphql.NewObject(graphql.ObjectConfig{
		Name: "InventoryItem",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"type":      &graphql.Field{Type: graphql.String},
			"quantity":  &graphql.Field{Type: graphql.Int},
			"managedBy": &graphql.Field{Type: graphql.String},
			"supplier":  &graphql.Field{Type: graphql.String},
			"createdAt": &graphql.Field{Type: graphql.DateTime},
		},
	})

	task := graphql.NewObject(graphql.ObjectConfig{
		Name: "Task",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"assignedTo":  &graphql.Field{Type: graphql.String},
			"createdBy":   &graphql.Field{Type: graphql.String},
			"dueDate":     &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"completedAt": &graphql.Field{Type: graphql.DateTime},
			"createdAt":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	counts := graphql.NewObject(graphql.ObjectConfig{
		Name: "DashboardCounts",
		Fields: graphql.Fields{
			"reorderCount": &graphql.Field{Type: graphql.Int},
			"pendingTasks": &graphql.Field{Type: graphql.Int},
			"todaysOrders": &graphql.Field{Type: graphql.Int},
		},
	})

	sidebar := graphql.NewObject(graphql.ObjectConfig{
		Name: "Sidebar",
		Fields: graphql.Fields{
			"inventory":     &graphql.Field{Type: graphql.Int},
			"reorder":       &graphql.Field{Type: graphql.Int},
			"orderRequests": &graphql.Field{Type: graphql.Int},
			"backorders":    &graphql.Field{Type: graphql.Int},
			"tasks":         &graphql.Field{Type: graphql.Int},
			"dailyOrders":   &graphql.Field{Type: graphql.Int},
			"customers":     &graphql.Field{Type: graphql.Int},
		},
	})

	activity := graphql.NewObject(graphql.ObjectConfig{
		Name: "Activity",
		Fields: graphql.Fields{
			"type":      &graphql.Field{Type: graphql.String},
			"timestamp": &graphql.Field{Type: graphql.DateTime},
			"actor":     &graphql.Field{Type: profile},
			"target":    &graphql.Field{Type: profile},
			"text":      &graphql.Field{Type: graphql.String},
		},
	})

	dashboard := graphql.NewObject(graphql.ObjectConfig{
		Name: "Dashboard",
		Fields: graphql.Fields{
			"counts":   &graphql.Field{Type: counts},
			"myTasks":  &graphql.Field{Type: graphql.NewList(task)},
			"activity": &graphql.Field{Type: graphql.NewList(activity)},
			"sidebar":  &graphql.Field{Type: sidebar},
			"user":     &graphql.Field{Type: profile},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"dashboard": &graphql.Field{
				Type: dashboard,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					uid, _ := auth.UserFromCtx(p.Context)
					return cache.Dashboard(uid), nil
				},
			},
			"inventory": &graphql.Field{
				Type: graphql.NewList(item),
				Args: graphql.FieldConfigArgument{
					"search":  &graphql.ArgumentConfig{Type: graphql.String},
					"sort":    &graphql.ArgumentConfig{Type: graphql.String},
					"desc":    &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
					"reorder": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					inStock, reorder := cache.Partition()
					items := inStock
					if r, _ := p.Args["reorder"].(bool); r {
						items = reorder
					}
					search, _ := p.Args["search"].(string)
					sortKey, _ := p.Args["sort"].(string)
					desc, _ := p.Args["desc"].(bool)
					return views.SortInventory(views.FilterInventory(items, search), views.SortKey(sortKey), desc), nil
				},
			},
			"tasks": &graphql.Field{
				Type: graphql.NewList(task),
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return cache.State().Tasks, nil
				},
			},
			"sidebar": &graphql.Field{
				Type: sidebar,
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return views.Sidebar(cache.State()), nil
				},
			},
		},
	})

	return gql.NewSchema(query)
}

// GraphQL returns the POST /graphql handler.
func GraphQL(cache *live.Cache) (http.HandlerFunc, error) {
	schema, err := DashboardSchema(cache)
	if err != nil {
		return nil, err
	}
	return gql.Handler(schema), nil
}
