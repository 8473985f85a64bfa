// Package tfconfig renders the Terraform files of a sandbox workspace and
// reads back tfvars, state and output documents.
package tfconfig

import "github.com/kompox/sandboxops/domain/model"

// VariableDef declares one input variable of the sandbox module.
type VariableDef struct {
	Name        string
	Type        string // "string" or "bool"
	Description string
	Default     any
}

// Definitions lists the sandbox module inputs in file order.
var Definitions = []VariableDef{
	{"project_name", "string", "Project name to use in resource naming", "terraform-sandbox"},
	{"environment", "string", "Environment name (e.g. dev, staging, prod)", "dev"},
	{"region", "string", "AWS region to deploy resources", "us-east-1"},
	{"vpc_cidr", "string", "CIDR block for the VPC", "10.0.0.0/16"},
	{"create_nat_gateway", "bool", "Create NAT Gateway for private subnets (incurs costs)", false},
	{"enable_vpc_flow_logs", "bool", "Enable VPC Flow Logs to CloudWatch", true},
	{"enable_compute_examples", "bool", "Enable compute resource examples", true},
	{"create_bastion", "bool", "Create a bastion host in a public subnet", true},
	{"create_ec2_examples", "bool", "Create EC2 instance examples", true},
	{"enable_database_examples", "bool", "Enable database resource examples", true},
	{"create_rds_examples", "bool", "Create RDS instance examples", true},
	{"create_dynamodb_examples", "bool", "Create DynamoDB examples", true},
	{"enable_storage_examples", "bool", "Enable storage resource examples", true},
	{"create_s3_examples", "bool", "Create S3 bucket examples", true},
	{"create_efs_examples", "bool", "Create EFS examples", true},
	{"enable_serverless_examples", "bool", "Enable serverless resource examples", true},
	{"create_lambda_examples", "bool", "Create Lambda function examples", true},
	{"create_apigateway_examples", "bool", "Create API Gateway examples", true},
	{"create_stepfunctions_examples", "bool", "Create Step Functions examples", true},
	{"enable_security_examples", "bool", "Enable security resource examples", true},
	{"enable_networking_examples", "bool", "Enable networking resource examples", true},
	{"enable_container_examples", "bool", "Enable container resource examples", true},
	{"enable_monitoring_examples", "bool", "Enable monitoring resource examples", true},
	{"enable_aiml_examples", "bool", "Enable AI/ML resource examples", true},
	{"enable_devops_examples", "bool", "Enable DevOps resource examples", true},
}

// Lookup returns the definition of a known variable.
func Lookup(name string) (VariableDef, bool) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return VariableDef{}, false
}

// Defaults returns the default value of every declared variable.
func Defaults() model.Variables {
	out := make(model.Variables, len(Definitions))
	for _, d := range Definitions {
		out[d.Name] = d.Default
	}
	return out
}
