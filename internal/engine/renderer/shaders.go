package renderer

const pointVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec4 aColor;

uniform mat4 uMVP;
uniform float uPointSize;
uniform float uLevel;

out vec4 vColor;

void main() {
	gl_Position = uMVP * vec4(aPos, 1.0);
	// Deeper octants hold denser points; shrink them a little.
	gl_PointSize = max(1.0, uPointSize * (1.0 - min(uLevel, 8.0) * 0.06));
	vColor = aColor;
}
`

const pointFragmentShader = `
#version 410 core

in vec4 vColor;
out vec4 FragColor;

void main() {
	vec2 c = gl_PointCoord * 2.0 - 1.0;
	if (dot(c, c) > 1.0) {
		discard;
	}
	FragColor = vec4(vColor.rgb, 1.0);
}
`

const lineVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;

uniform mat4 uMVP;

void main() {
	gl_Position = uMVP * vec4(aPos, 1.0);
}
`

const lineFragmentShader = `
#version 410 core

uniform vec4 uColor;
out vec4 FragColor;

void main() {
	FragColor = uColor;
}
`
