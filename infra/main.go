package main

import (
	"fmt"

	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/cloudfunctions"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/firestore"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi-gcp/sdk/v7/go/gcp/storage"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		// Configuration
		cfg := config.New(ctx, "assignadmin-infra")
		gcpCfg := config.New(ctx, "gcp")

		env := cfg.Require("environment")
		adminEmails := cfg.Get("adminEmails")
		claimsMode := cfg.Get("claimsMode")
		if claimsMode == "" {
			claimsMode = "replace"
		}
		authTenantId := cfg.Get("authTenantId")
		sourceVersion := cfg.Get("sourceVersion")
		if sourceVersion == "" {
			sourceVersion = "dev"
		}
		// Platform redelivery is off unless explicitly requested
		retryOnFailure := cfg.GetBool("retryOnFailure")
		enableLedger := cfg.GetBool("enableLedger")

		project := gcpCfg.Require("project")
		region := gcpCfg.Get("region")
		if region == "" {
			region = "us-central1"
		}

		// Resource naming
		namePrefix := fmt.Sprintf("assignadmin-%s", env)

		// =================================================================
		// Enable Required GCP APIs
		// =================================================================
		apis := map[string]string{
			"cloudfunctions":  "cloudfunctions.googleapis.com",
			"cloudbuild":      "cloudbuild.googleapis.com",
			"identitytoolkit": "identitytoolkit.googleapis.com",
			"iam":             "iam.googleapis.com",
		}
		if enableLedger {
			apis["firestore"] = "firestore.googleapis.com"
		}

		enabledAPIs := make([]*projects.Service, 0, len(apis))
		for name, api := range apis {
			svc, err := projects.NewService(ctx, fmt.Sprintf("%s-enable-%s-api", namePrefix, name), &projects.ServiceArgs{
				Service:                  pulumi.String(api),
				DisableDependentServices: pulumi.Bool(false),
				DisableOnDestroy:         pulumi.Bool(false),
			})
			if err != nil {
				return err
			}
			enabledAPIs = append(enabledAPIs, svc)
		}

		// Create dependency array for resources that need APIs enabled first
		apiDeps := make([]pulumi.Resource, len(enabledAPIs))
		for i, api := range enabledAPIs {
			apiDeps[i] = api
		}

		// =================================================================
		// Firestore Database (processed-event ledger, optional)
		// =================================================================
		dbName := ""
		if enableLedger {
			// Database name: "assignadmin-stg" or "assignadmin-prod"
			dbName = fmt.Sprintf("assignadmin-%s", env)
			firestoreDB, err := firestore.NewDatabase(ctx, fmt.Sprintf("%s-firestore", namePrefix), &firestore.DatabaseArgs{
				Name:                     pulumi.String(dbName),
				LocationId:               pulumi.String(region),
				Type:                     pulumi.String("FIRESTORE_NATIVE"),
				ConcurrencyMode:          pulumi.String("OPTIMISTIC"),
				AppEngineIntegrationMode: pulumi.String("DISABLED"),
			}, pulumi.DependsOn(apiDeps))
			if err != nil {
				return err
			}
			ctx.Export("firestoreDatabase", firestoreDB.Name)
		}

		// =================================================================
		// Service Account for the function
		// =================================================================
		saName := fmt.Sprintf("assignadmin-%s-fn", env)
		serviceAccount, err := serviceaccount.NewAccount(ctx, fmt.Sprintf("%s-sa", namePrefix), &serviceaccount.AccountArgs{
			AccountId:   pulumi.String(saName),
			DisplayName: pulumi.String(fmt.Sprintf("Assign admin %s Function Service Account", env)),
			Description: pulumi.String("Service account that writes admin custom claims"),
		}, pulumi.DependsOn(apiDeps))
		if err != nil {
			return err
		}

		// IAM bindings for the service account
		iamRoles := []struct {
			name string
			role string
		}{
			{"firebaseauth-admin", "roles/firebaseauth.admin"},
			{"logging-writer", "roles/logging.logWriter"},
		}
		if enableLedger {
			iamRoles = append(iamRoles, struct {
				name string
				role string
			}{"firestore-user", "roles/datastore.user"})
		}

		iamBindings := make([]pulumi.Resource, 0, len(iamRoles))
		for _, r := range iamRoles {
			binding, err := projects.NewIAMMember(ctx, fmt.Sprintf("%s-sa-%s", namePrefix, r.name), &projects.IAMMemberArgs{
				Project: pulumi.String(project),
				Role:    pulumi.String(r.role),
				Member:  pulumi.Sprintf("serviceAccount:%s", serviceAccount.Email),
			})
			if err != nil {
				return err
			}
			iamBindings = append(iamBindings, binding)
		}

		// =================================================================
		// Source Bucket
		// =================================================================
		bucket, err := storage.NewBucket(ctx, fmt.Sprintf("%s-source", namePrefix), &storage.BucketArgs{
			Location:                 pulumi.String(region),
			UniformBucketLevelAccess: pulumi.Bool(true),
			ForceDestroy:             pulumi.Bool(true),
		}, pulumi.DependsOn(apiDeps))
		if err != nil {
			return err
		}

		// The module root is the function package
		archive, err := storage.NewBucketObject(ctx, fmt.Sprintf("%s-source-archive", namePrefix), &storage.BucketObjectArgs{
			Bucket: bucket.Name,
			Name:   pulumi.Sprintf("assignadmin-%s.zip", sourceVersion),
			Source: pulumi.NewFileArchive(".."),
		})
		if err != nil {
			return err
		}

		// =================================================================
		// Cloud Function (1st gen, Firebase Auth user.create trigger)
		// =================================================================
		envVars := pulumi.StringMap{
			"ASSIGNADMIN_PROJECT_ID":  pulumi.String(project),
			"ASSIGNADMIN_CLAIMS_MODE": pulumi.String(claimsMode),
			"ASSIGNADMIN_TENANT_ID":   pulumi.String(authTenantId),
		}
		if adminEmails != "" {
			envVars["ASSIGNADMIN_ADMIN_EMAILS"] = pulumi.String(adminEmails)
		}
		if enableLedger {
			envVars["ASSIGNADMIN_LEDGER_ENABLED"] = pulumi.String("true")
			envVars["ASSIGNADMIN_LEDGER_DATABASE"] = pulumi.String(dbName)
		}

		function, err := cloudfunctions.NewFunction(ctx, fmt.Sprintf("%s-fn", namePrefix), &cloudfunctions.FunctionArgs{
			Name:                pulumi.String("assignAdminRole"),
			Region:              pulumi.String(region),
			Runtime:             pulumi.String("go124"),
			EntryPoint:          pulumi.String("AssignAdminRole"),
			AvailableMemoryMb:   pulumi.Int(128),
			Timeout:             pulumi.Int(60),
			SourceArchiveBucket: bucket.Name,
			SourceArchiveObject: archive.Name,
			ServiceAccountEmail: serviceAccount.Email,
			EventTrigger: &cloudfunctions.FunctionEventTriggerArgs{
				EventType: pulumi.String("providers/firebase.auth/eventTypes/user.create"),
				Resource:  pulumi.String(project),
				FailurePolicy: &cloudfunctions.FunctionEventTriggerFailurePolicyArgs{
					Retry: pulumi.Bool(retryOnFailure),
				},
			},
			EnvironmentVariables: envVars,
			Description:          pulumi.String(fmt.Sprintf("Grants the admin claim to allow-listed users (%s)", env)),
		}, pulumi.DependsOn(iamBindings))
		if err != nil {
			return err
		}

		// =================================================================
		// Outputs
		// =================================================================
		ctx.Export("functionName", function.Name)
		ctx.Export("functionRegion", pulumi.String(region))
		ctx.Export("sourceBucket", bucket.Name)
		ctx.Export("serviceAccountEmail", serviceAccount.Email)

		// Tail function logs
		ctx.Export("logsCommand", pulumi.Sprintf(
			"gcloud functions logs read %s --region=%s",
			function.Name, region,
		))

		return nil
	})
}
